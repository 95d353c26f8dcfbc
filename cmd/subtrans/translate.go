package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/subtrans/internal/display"
	"github.com/GriffinCanCode/subtrans/internal/screen"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var regionFlag string
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a screen region once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			region, err := screen.ParseRegion(regionFlag)
			if err != nil {
				return err
			}
			store, err := ctx.store()
			if err != nil {
				return err
			}

			msgs := make(chan display.Message, 16)
			p := buildPipeline(cmd.Context(), store, display.SinkFunc(func(m display.Message) {
				select {
				case msgs <- m:
				default:
				}
			}))
			defer func() { _ = p.Close() }()

			id, err := p.mgr.SubmitManualTranslation(cmd.Context(), region)
			if err != nil {
				return err
			}
			msg, err := awaitResult(cmd.Context(), msgs, id)
			if err != nil {
				return err
			}
			if msg.Kind == display.KindError {
				return fmt.Errorf("%s", msg.Text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&regionFlag, "region", "", "Region to translate as x,y,width,height")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

// awaitResult returns the first message produced for request id.
func awaitResult(ctx context.Context, msgs <-chan display.Message, id string) (display.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return display.Message{}, ctx.Err()
		case m := <-msgs:
			if m.RequestID == id {
				return m, nil
			}
		}
	}
}
