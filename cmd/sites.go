package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

func newSitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage scrape targets",
	}
	cmd.AddCommand(
		newSitesAddCmd(),
		newSitesListCmd(),
		newSitesEnableCmd(true),
		newSitesEnableCmd(false),
	)
	return cmd
}

func newSitesAddCmd() *cobra.Command {
	var (
		name            string
		url             string
		selectorsJSON   string
		intervalMinutes int
		disabled        bool
		tags            []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a scrape target",
		Example: `  jobsentry sites add --name acme --url https://acme.example/jobs \
    --selectors '{"container":"div.job","title":"h2","company":".company","url":"a"}' \
    --interval 60`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var selectors scraper.Selectors
			if err := json.Unmarshal([]byte(selectorsJSON), &selectors); err != nil {
				return fmt.Errorf("parse --selectors: %w", err)
			}
			site := scraper.Site{
				Name:      name,
				URL:       url,
				Selectors: selectors,
				Interval:  time.Duration(intervalMinutes) * time.Minute,
				Enabled:   !disabled,
				Tags:      tags,
			}
			id, err := a.Store.AddSite(cmd.Context(), site)
			if err != nil {
				return fmt.Errorf("add site: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "site %s saved (%s)\n", name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "unique site name")
	cmd.Flags().StringVar(&url, "url", "", "listing page URL")
	cmd.Flags().StringVar(&selectorsJSON, "selectors", "{}", "CSS selectors as JSON")
	cmd.Flags().IntVar(&intervalMinutes, "interval", 60, "scrape interval in minutes")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "register the site without scheduling it")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "free-form tags")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newSitesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			sites, err := a.Store.ListSites(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sites: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tURL\tINTERVAL\tENABLED\tLAST SCRAPED")
			for _, site := range sites {
				last := "never"
				if site.LastScrapedAt != nil {
					last = site.LastScrapedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", site.Name, site.URL, site.Interval, site.Enabled, last)
			}
			return w.Flush()
		},
	}
}

func newSitesEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <name>", "Enable a site for scheduling"
	if !enable {
		use, short = "disable <name>", "Remove a site from scheduling"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			site, err := a.Store.GetSiteByName(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("site %q: %w", args[0], err)
			}
			if err := a.Store.SetSiteEnabled(cmd.Context(), site.ID, enable); err != nil {
				return fmt.Errorf("update site: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "site %s enabled=%t\n", site.Name, enable)
			return nil
		},
	}
}
