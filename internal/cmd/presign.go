package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/s3compat/pkg/provider/s3compat"
)

// presignResult is the printed form of a signed URL.
type presignResult struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Expires time.Time         `json:"expires" yaml:"expires"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

func newPresignCmd(a *app) *cobra.Command {
	var (
		method      string
		expiry      time.Duration
		version     string
		displayName string
		contentType string
	)

	c := &cobra.Command{
		Use:   "presign <path>",
		Short: "Print a time-limited signed URL for a path",
		Long: `Sign a URL for path without contacting the backend.

Headers listed in the output are part of the signature and must be sent
unchanged with the request.

Examples:
  s3compat presign /reports/q1.pdf
  s3compat presign /reports/q1.pdf --name "Q1 report.pdf" --expiry 10m
  s3compat presign /inbox/upload.bin --method PUT --content-type application/octet-stream`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method = strings.ToUpper(method)
			switch method {
			case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
			default:
				return exitError(foundry.ExitInvalidArgument, "Invalid --method value", fmt.Errorf("expected GET, HEAD, PUT or DELETE, got %s", method))
			}
			if expiry < 0 {
				return exitError(foundry.ExitInvalidArgument, "Invalid --expiry value", fmt.Errorf("expiry must be positive"))
			}

			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			path, err := p.ValidatePath(ctx, args[0])
			if err != nil {
				return providerExit("Invalid path", err)
			}

			req := s3compat.SignRequest{Method: method, Key: path.Key(), Expiry: expiry}
			if version != "" {
				req.Query = url.Values{"versionId": {version}}
			}
			if displayName != "" {
				req.ResponseHeaders = map[string]string{"response-content-disposition": s3compat.ContentDisposition(displayName)}
			}
			if contentType != "" {
				req.Header = http.Header{"Content-Type": {contentType}}
			}

			signed, err := p.Signer().Presign(ctx, req)
			if err != nil {
				return providerExit("Failed to sign URL", err)
			}

			out := presignResult{Method: method, URL: signed.URL, Expires: signed.Expires}
			if len(signed.Header) > 0 {
				out.Headers = make(map[string]string, len(signed.Header))
				for k := range signed.Header {
					out.Headers[k] = signed.Header.Get(k)
				}
			}
			return a.out.print(out)
		},
	}

	c.Flags().StringVar(&method, "method", http.MethodGet, "HTTP method the URL is valid for")
	c.Flags().DurationVar(&expiry, "expiry", 0, "URL lifetime (default from config)")
	c.Flags().StringVar(&version, "version", "", "Object version")
	c.Flags().StringVar(&displayName, "name", "", "Download file name (sets response-content-disposition)")
	c.Flags().StringVar(&contentType, "content-type", "", "Content-Type the uploader must send (PUT)")
	return c
}
