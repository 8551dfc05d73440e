package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/picklr-io/infraviz/internal/events"
	"github.com/picklr-io/infraviz/internal/logging"
)

var (
	watchURL   string
	watchTopic string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream stack lifecycle events from NATS",
	Long: `Subscribes to the stack events published by a running infraviz service
and prints one line per event until interrupted. The server URL defaults to
INFRAVIZ_NATS_URL.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "NATS server URL")
	watchCmd.Flags().StringVar(&watchTopic, "topic", events.TopicAll, "Subject to subscribe to")
}

func runWatch(cmd *cobra.Command, args []string) error {
	url := watchURL
	if url == "" && cfg != nil {
		url = cfg.NATSURL
	}
	if url == "" {
		return errors.New("no NATS server: pass --url or set INFRAVIZ_NATS_URL")
	}

	sub, err := events.NewNATSSubscriber(url)
	if err != nil {
		return err
	}
	defer sub.Close()

	msgs, cancel, err := sub.Subscribe(watchTopic)
	if err != nil {
		return err
	}
	defer cancel()

	logging.Info("watching stack events", "url", url, "topic", watchTopic)
	return printMessages(cmd.Context(), cmd.OutOrStdout(), msgs)
}

// printMessages writes each message as "<topic> <payload>" until ctx is done
// or msgs is closed.
func printMessages(ctx context.Context, w io.Writer, msgs <-chan events.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "%s %s\n", msg.Topic, msg.Data)
		}
	}
}
