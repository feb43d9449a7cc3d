package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/jmau0/riobutcher/internal/automation"
	"github.com/jmau0/riobutcher/internal/core"
	"github.com/spf13/cobra"
)

func newQRCmd(a *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "qr [instance]",
		Short: "Request a WhatsApp pairing QR code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance := a.cfg.WhatsAppInstance
			if len(args) == 1 {
				instance = args[0]
			}

			client, err := automation.NewClient(automation.Config{
				BaseURL: a.cfg.WebhookBaseURL,
				QRPath:  a.cfg.WebhookQRPath,
				Timeout: a.cfg.WebhookTimeout,
			}, a.logger)
			if err != nil {
				return err
			}

			conversations := core.NewConversationService(nil, client, nil, a.logger)
			qr, err := conversations.GeneratePairingQR(cmd.Context(), instance)
			if err != nil {
				return fmt.Errorf("failed to generate QR code for %s: %w", instance, err)
			}

			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), qr)
				return nil
			}

			_, encoded, ok := strings.Cut(qr, ";base64,")
			if !ok {
				return fmt.Errorf("QR code is not a base64 data URL")
			}
			png, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return fmt.Errorf("failed to decode QR code: %w", err)
			}
			if err := os.WriteFile(outPath, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("QR code salvo em "+outPath))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the PNG to this file instead of printing the data URL")
	return cmd
}
