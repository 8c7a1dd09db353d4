package cli

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-somfy/pkg/somfy/certstore"
)

type certInfo struct {
	Source    string    `json:"source"`
	Path      string    `json:"path"`
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Bootstrap and show the gateway trust certificate",
	Long: `Ensure the gateway root certificate is available and print it.

With gateway.cert_file set, that file is loaded. Otherwise the vendor root
is downloaded into the cache directory (default ~/.somfy_sdk) if it is
not there yet.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.New(cfg.Logging, version)

		var (
			cert *x509.Certificate
			info certInfo
		)
		if cfg.Gateway.CertFile != "" {
			info.Source, info.Path = "provided", cfg.Gateway.CertFile
			cert, err = certstore.LoadFile(cfg.Gateway.CertFile)
		} else {
			store := CertStore(cfg.Gateway, log.Logger)
			info.Source, info.Path = "cache", store.Path()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			cert, err = store.Ensure(ctx)
		}
		if err != nil {
			return err
		}

		info.Subject = cert.Subject.String()
		info.Issuer = cert.Issuer.String()
		info.NotBefore = cert.NotBefore.UTC()
		info.NotAfter = cert.NotAfter.UTC()

		return output(cmd, info, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render(CheckMark), ValueStyle.Render(info.Path))
			fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Source: "), info.Source)
			fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Subject:"), info.Subject)
			fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Issuer: "), info.Issuer)
			fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Expires:"), info.NotAfter.Format(time.DateOnly))
		})
	},
}

func init() {
	rootCmd.AddCommand(certCmd)
}
