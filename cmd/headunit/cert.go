package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsabaia/headunit-revived-sub000/internal/secure"
	"github.com/tsabaia/headunit-revived-sub000/internal/ui"
)

// Cert command flags
var (
	certOutDir     string
	certCommonName string
	certValidDays  int
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the head unit TLS identity",
}

var certGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed head unit certificate",
	Long: `Generate a certificate and private key and write them as cert.pem and
key.pem. Point security.cert_path and security.key_path (or --cert and --key)
at the files to present the same identity on every connection.`,
	Example: `  headunit cert generate --out ~/.config/headunit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := secure.DefaultCertParams()
		if certCommonName != "" {
			params.CommonName = certCommonName
		}
		if certValidDays > 0 {
			params.ValidDays = certValidDays
		}

		id, err := secure.GenerateIdentity(params)
		if err != nil {
			return err
		}
		certPath, keyPath, err := id.WriteFiles(certOutDir)
		if err != nil {
			return err
		}

		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Identity generated", map[string]string{
			"Certificate": certPath,
			"Key":         keyPath,
			"Subject":     id.Leaf.Subject.CommonName,
			"Expires":     id.Leaf.NotAfter.Format("2006-01-02"),
			"Valid days":  fmt.Sprintf("%d", params.ValidDays),
		})
		return nil
	},
}

func init() {
	certGenerateCmd.Flags().StringVar(&certOutDir, "out", ".", "Directory to write cert.pem and key.pem to")
	certGenerateCmd.Flags().StringVar(&certCommonName, "cn", "", "Certificate common name")
	certGenerateCmd.Flags().IntVar(&certValidDays, "days", 0, "Validity in days (default from the engine)")

	certCmd.AddCommand(certGenerateCmd)
}
