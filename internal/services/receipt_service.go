package services

import (
	"context"
	"errors"
	"fmt"

	"receipt-verification-api/internal/config"
	"receipt-verification-api/internal/metrics"
	"receipt-verification-api/internal/models"
	"receipt-verification-api/pkg/appstore"
	"receipt-verification-api/pkg/logging"

	"golang.org/x/sync/errgroup"
)

var ErrBundleMismatch = errors.New("bundle id mismatch")

// ReceiptVerifier is implemented by *appstore.Verifier.
type ReceiptVerifier interface {
	Verify(ctx context.Context, receiptData string, opts ...appstore.VerifyOption) (*appstore.Receipt, error)
	VerifyOrFalse(ctx context.Context, receiptData string, opts ...appstore.VerifyOption) (*appstore.Receipt, bool)
}

// VerifyInput is one receipt to verify on behalf of a project.
type VerifyInput struct {
	ReceiptData            string
	ExcludeOldTransactions *bool
	// BundleID overrides the project's bundle ID for the match check.
	BundleID string
}

// BatchResult is the outcome for the receipt at Index in a batch.
type BatchResult struct {
	Index   int
	Receipt *appstore.Receipt
	Err     error
}

// ReceiptService verifies receipts with per-project credentials
type ReceiptService struct {
	verifier      ReceiptVerifier
	stats         StatsRecorder
	metrics       *metrics.Metrics
	defaultSecret string
	concurrency   int
}

// NewReceiptService creates a new receipt service. m may be nil.
func NewReceiptService(verifier ReceiptVerifier, stats StatsRecorder, m *metrics.Metrics, defaultSecret string, concurrency int) *ReceiptService {
	if stats == nil {
		stats = NoopStats{}
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ReceiptService{
		verifier:      verifier,
		stats:         stats,
		metrics:       m,
		defaultSecret: defaultSecret,
		concurrency:   concurrency,
	}
}

// NewVerifier builds the App Store verifier described by cfg.
func NewVerifier(cfg *config.Config, m *metrics.Metrics) *appstore.Verifier {
	clientOpts := []appstore.ClientOption{
		appstore.WithTimeouts(cfg.AppStoreOpenTimeout, cfg.AppStoreReadTimeout),
	}
	if cfg.AppStoreExcludeOldTransactions {
		clientOpts = append(clientOpts, appstore.WithDefaultExcludeOldTransactions(true))
	}
	if cfg.VerificationEndpoint != "" {
		clientOpts = append(clientOpts, appstore.WithEndpoint(appstore.Production, cfg.VerificationEndpoint))
	}
	if cfg.SandboxEndpoint != "" {
		clientOpts = append(clientOpts, appstore.WithEndpoint(appstore.Development, cfg.SandboxEndpoint))
	}

	opts := []appstore.VerifierOption{
		appstore.WithClientOptions(clientOpts...),
		appstore.WithMaxRetry(cfg.AppStoreMaxRetry),
		appstore.WithVerifierLogger(logging.Default()),
	}
	if m != nil {
		opts = append(opts, appstore.WithObserver(m))
	}
	return appstore.NewVerifier(opts...)
}

func (s *ReceiptService) optionsFor(project *models.Project, in VerifyInput) []appstore.VerifyOption {
	var opts []appstore.VerifyOption
	switch {
	case project.HasSharedSecret():
		opts = append(opts, appstore.WithSharedSecret(project.SharedSecret))
	case s.defaultSecret != "":
		opts = append(opts, appstore.WithSharedSecret(s.defaultSecret))
	}

	exclude := project.ExcludeOldTransactions
	if in.ExcludeOldTransactions != nil {
		exclude = in.ExcludeOldTransactions
	}
	if exclude != nil {
		opts = append(opts, appstore.WithExcludeOldTransactions(*exclude))
	}
	return opts
}

func expectedBundle(project *models.Project, in VerifyInput) string {
	if in.BundleID != "" {
		return in.BundleID
	}
	return project.BundleID
}

// Verify verifies one receipt and checks it belongs to the expected bundle
func (s *ReceiptService) Verify(ctx context.Context, project *models.Project, in VerifyInput) (*appstore.Receipt, error) {
	receipt, err := s.verifier.Verify(ctx, in.ReceiptData, s.optionsFor(project, in)...)

	env := environmentOf(receipt, err)
	outcome := appstore.ErrorKind(err)
	if receipt != nil && receipt.Expired() {
		outcome = "expired"
	}
	if err == nil {
		if want := expectedBundle(project, in); want != "" && receipt.BundleID != want {
			outcome = "bundle_mismatch"
			err = fmt.Errorf("%w: got %q, want %q", ErrBundleMismatch, receipt.BundleID, want)
			receipt = nil
		}
	}
	s.record(ctx, project.ProjectID, env, outcome)

	if err != nil {
		logging.Warnf("Receipt verification failed - ProjectID: %s, Outcome: %s, Error: %v", project.ProjectID, outcome, err)
		return nil, err
	}

	logging.Infof("Receipt verified - ProjectID: %s, Environment: %s, BundleID: %s, Transactions: %d",
		project.ProjectID, receipt.Environment, receipt.BundleID, len(receipt.InApp))
	return receipt, nil
}

// Validate answers yes or no without surfacing the failure reason
func (s *ReceiptService) Validate(ctx context.Context, project *models.Project, in VerifyInput) bool {
	receipt, ok := s.verifier.VerifyOrFalse(ctx, in.ReceiptData, s.optionsFor(project, in)...)
	if ok {
		if want := expectedBundle(project, in); want != "" && receipt.BundleID != want {
			ok = false
		}
	}

	outcome := "valid"
	env := ""
	if ok {
		env = receipt.Environment
	} else {
		outcome = "invalid"
	}
	s.record(ctx, project.ProjectID, env, outcome)
	return ok
}

// VerifyBatch verifies receipts concurrently. One failing receipt does not
// affect the others; results keep the input order.
func (s *ReceiptService) VerifyBatch(ctx context.Context, project *models.Project, inputs []VerifyInput) []BatchResult {
	results := make([]BatchResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			receipt, err := s.Verify(ctx, project, in)
			results[i] = BatchResult{Index: i, Receipt: receipt, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Stats returns the verification counters for a project
func (s *ReceiptService) Stats(ctx context.Context, projectID string) (map[string]int64, error) {
	return s.stats.Get(ctx, projectID)
}

func (s *ReceiptService) record(ctx context.Context, projectID, environment, outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementVerifications(outcome)
	}
	if err := s.stats.Record(ctx, projectID, environment, outcome); err != nil {
		logging.Errorf("Failed to record verification stats - ProjectID: %s, Error: %v", projectID, err)
	}
}

func environmentOf(receipt *appstore.Receipt, err error) string {
	if receipt != nil {
		return receipt.Environment
	}
	var verr *appstore.VerificationError
	if errors.As(err, &verr) {
		if env, ok := verr.Response["environment"].(string); ok {
			return env
		}
	}
	return ""
}
