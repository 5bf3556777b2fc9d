package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"
)

type fakeSlackClient struct {
	channel string
	err     error
	calls   int
}

func (f *fakeSlackClient) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	return channelID, "", f.err
}

func TestSlackSend_PostsToConfiguredChannel(t *testing.T) {
	t.Parallel()

	client := &fakeSlackClient{}
	s := NewSlackWithClient(client, "C012345")

	require.NoError(t, s.Send(context.Background(), "hello"))
	require.Equal(t, 1, client.calls)
	require.Equal(t, "C012345", client.channel)
}

func TestSlackSend_WrapsAPIError(t *testing.T) {
	t.Parallel()

	client := &fakeSlackClient{err: errors.New("channel_not_found")}
	s := NewSlackWithClient(client, "C012345")

	err := s.Send(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "channel_not_found")
}

func TestNewSlack_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewSlack("", "C012345")
	require.Error(t, err)
	_, err = NewSlack("xoxb-token", "")
	require.Error(t, err)
}
