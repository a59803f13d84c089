package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

var (
	listenMetricsAddr string
	listenNotify      bool
	listenChat        int64
)

func init() {
	listenCmd.Flags().StringVar(&listenMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	listenCmd.Flags().BoolVar(&listenNotify, "notify", false, "Log a notification for every incoming message")
	listenCmd.Flags().Int64Var(&listenChat, "chat", 0, "Open this chat so its messages are marked read as they arrive")
	rootCmd.AddCommand(listenCmd)
}

// newClient builds a realtime client from the CLI config.
func newClient(log zerolog.Logger, notifier wazzap.Notifier) (*wazzap.Client, error) {
	cfg, session, api, err := setup(log)
	if err != nil {
		return nil, err
	}
	if err := requireSession(session); err != nil {
		return nil, err
	}
	_, wsURL, err := endpoints(cfg)
	if err != nil {
		return nil, err
	}
	return wazzap.New(wazzap.Config{WSURL: wsURL, Logger: &log, Notifier: notifier}, session, api), nil
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Follow the realtime feed until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		var notifier wazzap.Notifier
		if listenNotify {
			notifier = &wazzap.LogNotifier{Log: log, Allowed: true}
		}
		client, err := newClient(log, notifier)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if listenMetricsAddr != "" {
			srv := &http.Server{Addr: listenMetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("metrics server stopped")
				}
			}()
			defer srv.Close()
		}

		done := make(chan error, 1)
		finish := func(err error) {
			select {
			case done <- err:
			default:
			}
		}
		client.OnSessionInvalid(func(ev wazzap.CloseEvent) {
			finish(fmt.Errorf("session ended by server (%d %s); run 'wazzap login' again", ev.Code, ev.Reason))
		})
		client.OnReconnectExhausted(func() {
			finish(errors.New("gave up reconnecting; the stored session is kept"))
		})
		client.OnEvent(func(ev wazzap.Event) {
			if e, ok := ev.(wazzap.MessageNewEvent); ok {
				fmt.Printf("[chat %d] %s: %s\n", e.ChatID, valueOrDefault(e.Message.SenderUsername, "?"), e.Message.Content)
			}
		})

		loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := client.LoadChats(loadCtx); err != nil {
			log.Warn().Err(err).Msg("initial chat list load failed")
		}
		cancel()

		// Without --notify the terminal counts as focused.
		client.SetFocused(!listenNotify)
		if listenChat != 0 {
			if err := client.OpenChat(listenChat); err != nil {
				return err
			}
		}
		if err := client.Connect(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			return err
		}
	},
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
