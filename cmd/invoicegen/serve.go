package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lvillar/invoicegen"
	"github.com/lvillar/invoicegen/archive"
	"github.com/lvillar/invoicegen/config"
	"github.com/lvillar/invoicegen/convert"
	"github.com/lvillar/invoicegen/docx"
	"github.com/lvillar/invoicegen/payment"
	"github.com/lvillar/invoicegen/qrimage"
	"github.com/lvillar/invoicegen/server"
)

func serveCmd(load loader) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM.

Examples:
  invoicegen serve
  invoicegen serve --addr :8080 --config invoicegen.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log := cfg.Log.Logger(os.Stderr)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(quit)
			go func() {
				select {
				case sig := <-quit:
					log.Info().Str("signal", sig.String()).Msg("stopping")
					cancel()
				case <-ctx.Done():
				}
			}()

			opts, err := generatorOptions(ctx, cfg, log)
			if err != nil {
				return err
			}
			gen, err := invoicegen.New(opts...)
			if err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			srv, err := server.New(gen, cfg.Server, log)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// generatorOptions maps the configuration onto generator options.
func generatorOptions(ctx context.Context, cfg *config.Config, log zerolog.Logger) ([]invoicegen.Option, error) {
	fit := docx.DefaultFit
	fit.DefaultWidthMM = cfg.Template.WidthMM

	opts := []invoicegen.Option{
		invoicegen.WithTemplatePath(cfg.Template.Path),
		invoicegen.WithOutputDir(cfg.Template.OutputDir),
		invoicegen.WithDefaultWidthMM(cfg.Template.WidthMM),
		invoicegen.WithKeepArtifacts(cfg.Template.KeepArtifacts),
		invoicegen.WithLogger(log),
		invoicegen.WithResolver(newResolver(cfg)),
		invoicegen.WithRenderer(newRenderer(cfg)),
		invoicegen.WithPadding(padding(cfg)),
		invoicegen.WithConverter(convert.NewOffice(
			convert.WithBinary(cfg.Convert.Binary),
			convert.WithTimeout(cfg.Convert.Timeout),
			convert.WithLogger(log),
		)),
		invoicegen.WithEmbedder(docx.NewEmbedder(
			docx.WithMarker(cfg.Template.Marker),
			docx.WithFit(fit),
			docx.WithKeepText(cfg.Template.KeepText),
			docx.WithLogger(log),
		)),
	}

	if cfg.Archive.S3Bucket != "" {
		up, err := archive.NewS3UploaderFromEnv(ctx, cfg.Archive.S3Bucket, cfg.Archive.S3Region, cfg.Archive.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("s3 uploader: %w", err)
		}
		opts = append(opts, invoicegen.WithUploader(up))
	}
	return opts, nil
}

func newResolver(cfg *config.Config) *payment.Resolver {
	return payment.NewResolver(cfg.Payee, payment.WithStrict(cfg.Payment.Strict))
}

func newRenderer(cfg *config.Config) *qrimage.QRRenderer {
	return qrimage.NewRenderer(
		qrimage.WithModuleSize(cfg.QR.ModuleSize),
		qrimage.WithQuietZone(cfg.QR.QuietZone),
		qrimage.WithErrorCorrection(cfg.QR.ErrorCorrection),
	)
}

func padding(cfg *config.Config) qrimage.Padding {
	return qrimage.Padding{MinPx: cfg.QR.PaddingMinPx, Ratio: cfg.QR.PaddingRatio}
}
