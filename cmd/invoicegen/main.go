// Command invoicegen serves invoice documents with an embedded payment QR
// code and offers the payload and QR steps on the command line.
//
// # Installation
//
//	go install github.com/lvillar/invoicegen/cmd/invoicegen@latest
//
// # Commands
//
//   - serve: run the HTTP API (GET /Document/GetPdf, GetDocx, GetPdfZip,
//     GetDocxZip, GetAllZip, GetPaymentQr)
//   - payload: print the ST00012 payload for a set of request parameters
//   - qr: write the padded payment QR code as PNG
//
// Settings come from --config (YAML), .env and INVOICEGEN_* variables,
// e.g. INVOICEGEN_SERVER_ADDR=:8080 or INVOICEGEN_PAYEE_BIC=044525974.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lvillar/invoicegen/config"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "invoicegen: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "invoicegen",
		Short:         "Invoice documents with payment QR codes",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(serveCmd(load))
	root.AddCommand(payloadCmd(load))
	root.AddCommand(qrCmd(load))
	return root
}

type loader func() (*config.Config, error)
