package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

func newAssessCommand(opts *RootOptions) *cobra.Command {
	var (
		file    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Decide a single invoice from a JSON file",
		Long:  "Loads an extracted invoice from a JSON file, runs the full decision\npipeline against the configured backing services, and prints the rendered\ndecision as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(opts, file, timeout)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the invoice JSON file")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall pipeline timeout")
	return cmd
}

func runAssess(opts *RootOptions, file string, timeout time.Duration) error {
	inv, err := loadInvoiceFile(file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	app, err := buildApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, runErr := app.Service.ProcessInvoice(ctx, inv)
	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return runErr
}

// loadInvoiceFile reads and minimally normalizes an invoice record.
func loadInvoiceFile(path string) (*invoice.Invoice, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read invoice file")
	}
	var inv invoice.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "invoice file is not valid JSON")
	}
	if inv.ID == "" {
		inv.ID = common.NewID()
	}
	if inv.Status == "" {
		inv.Status = invoice.StatusExtracted
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	return &inv, nil
}
