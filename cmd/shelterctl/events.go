package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/straycare/internal/messaging"
	"github.com/vladislavdragonenkov/straycare/internal/messaging/kafka"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect donation events published from the outbox",
	}

	var (
		brokers    []string
		group      string
		topic      string
		fromOldest bool
		asJSON     bool
		deadLetter bool
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Follow donation events on Kafka until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(brokers) == 0 {
				brokers = splitCSV(os.Getenv("SHELTER_KAFKA_BROKERS"))
			}
			if len(brokers) == 0 {
				return errors.New("SHELTER_KAFKA_BROKERS (or --brokers) is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var dlq *kafka.Producer
			if deadLetter {
				producer, err := kafka.NewProducer(brokers, "shelterctl")
				if err != nil {
					return fmt.Errorf("init dlq producer: %w", err)
				}
				defer producer.Close()
				dlq = producer
			}

			consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:    brokers,
				GroupID:    group,
				Topics:     []string{topic},
				FromOldest: fromOldest,
			}, printEnvelope(cmd.OutOrStdout(), asJSON), dlq)
			if err != nil {
				return err
			}
			return consumer.Run(ctx)
		},
	}
	tail.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers (fallback: SHELTER_KAFKA_BROKERS)")
	tail.Flags().StringVar(&group, "group", "shelterctl-tail", "consumer group id")
	tail.Flags().StringVar(&topic, "topic", kafka.TopicDonationEvents, "topic to follow")
	tail.Flags().BoolVar(&fromOldest, "from-beginning", false, "start from the oldest retained offset")
	tail.Flags().BoolVar(&asJSON, "json", false, "print raw envelopes as JSON lines")
	tail.Flags().BoolVar(&deadLetter, "dead-letter", false, "forward undecodable messages to "+kafka.TopicDeadLetterQueue)

	cmd.AddCommand(tail)
	return cmd
}

// printEnvelope печатает одно событие в строку.
func printEnvelope(out io.Writer, asJSON bool) kafka.EnvelopeHandler {
	enc := json.NewEncoder(out)
	return func(_ context.Context, env messaging.Envelope) error {
		if asJSON {
			return enc.Encode(env)
		}
		event, err := env.DonationEvent()
		if err != nil {
			_, werr := fmt.Fprintf(out, "%s %s %s\n", env.PublishedAt.Format("2006-01-02T15:04:05Z07:00"), env.EventType, env.AggregateID)
			return werr
		}
		_, err = fmt.Fprintf(out, "%s %-26s order=%s status=%s amount=%s %s\n",
			env.PublishedAt.Format("2006-01-02T15:04:05Z07:00"),
			env.EventType,
			event.ExternalOrderID,
			event.Status,
			orDash(event.Amount),
			event.Currency,
		)
		return err
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
