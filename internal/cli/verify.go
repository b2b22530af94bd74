package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"receipt-verification-api/pkg/appstore"
	"receipt-verification-api/pkg/logging"

	"github.com/spf13/cobra"
)

// ErrInvalidReceipt is returned by verify --bool when the receipt is rejected.
// The result has already been printed, so callers only set the exit code.
var ErrInvalidReceipt = errors.New("receipt is not valid")

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	Secret          string
	ExcludeOld      bool
	Env             string
	OpenTimeout     time.Duration
	ReadTimeout     time.Duration
	Endpoint        string
	SandboxEndpoint string
	MaxRetry        int
	Bool            bool
}

// receiptVerifier is satisfied by both *appstore.Client and *appstore.Verifier.
type receiptVerifier interface {
	Verify(ctx context.Context, receiptData string, opts ...appstore.VerifyOption) (*appstore.Receipt, error)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify [file|-]",
		Short: "Verify a base64 encoded receipt",
		Long: `Verify a base64 encoded receipt read from a file, or from stdin when the
argument is "-" or omitted.

Without --env the receipt is sent to production first and moved to the
sandbox when Apple answers 21007. With --env only that environment is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			return runVerify(cmd, rootOpts, opts, source)
		},
	}

	cmd.Flags().StringVar(&opts.Secret, "secret", "", "app-specific shared secret")
	cmd.Flags().BoolVar(&opts.ExcludeOld, "exclude-old", false, "only return the latest renewal of each subscription")
	cmd.Flags().StringVar(&opts.Env, "env", "", "pin one environment (production|development)")
	cmd.Flags().DurationVar(&opts.OpenTimeout, "open-timeout", 0, "connect timeout (0 keeps the default)")
	cmd.Flags().DurationVar(&opts.ReadTimeout, "read-timeout", 0, "response timeout (0 keeps the default)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "override the production verifyReceipt URL")
	cmd.Flags().StringVar(&opts.SandboxEndpoint, "sandbox-endpoint", "", "override the sandbox verifyReceipt URL")
	cmd.Flags().IntVar(&opts.MaxRetry, "max-retry", appstore.MaxRetry, "retries on retryable failures")
	cmd.Flags().BoolVar(&opts.Bool, "bool", false, "only print whether the receipt is valid; exit 1 when it is not")

	return cmd
}

func runVerify(cmd *cobra.Command, rootOpts *RootOptions, opts *VerifyOptions, source string) error {
	data, err := readReceipt(cmd.InOrStdin(), source)
	if err != nil {
		return err
	}

	level := "error"
	if rootOpts.Verbose {
		level = "debug"
	}
	logging.InitLoggingTo(level, cmd.ErrOrStderr())

	verifier, err := buildVerifier(opts)
	if err != nil {
		return err
	}

	verifyOpts := []appstore.VerifyOption{
		appstore.WithOpenTimeout(opts.OpenTimeout),
		appstore.WithReadTimeout(opts.ReadTimeout),
	}
	if cmd.Flags().Changed("exclude-old") {
		verifyOpts = append(verifyOpts, appstore.WithExcludeOldTransactions(opts.ExcludeOld))
	}

	receipt, err := verifier.Verify(cmd.Context(), data, verifyOpts...)
	if opts.Bool {
		return printValid(cmd.OutOrStdout(), rootOpts.Format, err == nil)
	}
	if err != nil {
		return err
	}
	return printReceipt(cmd.OutOrStdout(), rootOpts.Format, receipt)
}

func buildVerifier(opts *VerifyOptions) (receiptVerifier, error) {
	clientOpts := []appstore.ClientOption{appstore.WithLogger(logging.Default())}
	if opts.Secret != "" {
		clientOpts = append(clientOpts, appstore.WithClientSharedSecret(opts.Secret))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, appstore.WithEndpoint(appstore.Production, opts.Endpoint))
	}
	if opts.SandboxEndpoint != "" {
		clientOpts = append(clientOpts, appstore.WithEndpoint(appstore.Development, opts.SandboxEndpoint))
	}

	if opts.Env != "" {
		client, err := appstore.ForEnvironment(opts.Env, clientOpts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return appstore.NewVerifier(
		appstore.WithClientOptions(clientOpts...),
		appstore.WithMaxRetry(opts.MaxRetry),
		appstore.WithVerifierLogger(logging.Default()),
	), nil
}

func readReceipt(stdin io.Reader, source string) (string, error) {
	var (
		raw []byte
		err error
	)
	if source == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(source)
	}
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}

	data := strings.TrimSpace(string(raw))
	if data == "" {
		return "", errors.New("read receipt: input is empty")
	}
	return data, nil
}

func printValid(w io.Writer, format string, valid bool) error {
	if format == "json" {
		if err := json.NewEncoder(w).Encode(map[string]bool{"valid": valid}); err != nil {
			return err
		}
	} else if valid {
		fmt.Fprintln(w, "valid")
	} else {
		fmt.Fprintln(w, "invalid")
	}
	if !valid {
		return ErrInvalidReceipt
	}
	return nil
}

func printReceipt(w io.Writer, format string, r *appstore.Receipt) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "status:       %d\n", r.Status)
	fmt.Fprintf(w, "environment:  %s\n", r.Environment)
	fmt.Fprintf(w, "bundle id:    %s\n", r.BundleID)
	fmt.Fprintf(w, "version:      %s\n", r.ApplicationVersion)
	fmt.Fprintf(w, "in app:       %d\n", len(r.InApp))
	fmt.Fprintf(w, "latest info:  %d\n", len(r.LatestReceiptInfo))
	if latest := r.LatestTransaction(); latest != nil {
		fmt.Fprintf(w, "latest:       %s %s", latest.TransactionID, latest.ProductID)
		if latest.ExpiresAt != nil {
			fmt.Fprintf(w, " expires %s", latest.ExpiresAt.UTC().Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
	if r.Expired() {
		fmt.Fprintln(w, "subscription expired")
	}
	return nil
}
