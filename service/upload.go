package service

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/torus-agents/pin_service/chain"
	"github.com/torus-agents/pin_service/domain"
	"github.com/torus-agents/pin_service/entity"
	wrapErrors "github.com/torus-agents/pin_service/errors"
	"github.com/torus-agents/pin_service/utils"
)

// Stage is the last pipeline state a request reached.
type Stage string

const (
	StageStart          Stage = "start"
	StageVerified       Stage = "verified"
	StageBalanceChecked Stage = "balance_checked"
	StageAuthorized     Stage = "authorized"
	StagePinned         Stage = "pinned"
)

type IdentityVerifier interface {
	Verify(phrase, claimedAddress string) (*domain.Keypair, error)
}

type Pinner interface {
	PinAndStore(ctx context.Context, p *entity.UploadPayload, pinnedBy string) (*entity.PinReceipt, error)
}

type UploadRequest struct {
	RequestID string
	Address   string
	// Mnemonic must never be logged.
	Mnemonic string
	Stake    bool
	Payload  *entity.UploadPayload
}

type UploadResult struct {
	Stage    Stage
	Decision *entity.AdmissionDecision
	Receipt  *entity.PinReceipt
}

// UploadService runs verify -> query -> decide -> pin for one request. It
// holds only immutable configuration and shared clients.
type UploadService struct {
	Verifier   IdentityVerifier
	Oracle     chain.BalanceOracle
	Pinner     Pinner
	MinBalance *big.Int
	logger     *slog.Logger
}

func NewUploadService(
	verifier IdentityVerifier,
	oracle chain.BalanceOracle,
	pinner Pinner,
	minBalance *big.Int,
	logger *slog.Logger,
) *UploadService {
	if minBalance == nil {
		minBalance = new(big.Int)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		Verifier:   verifier,
		Oracle:     oracle,
		Pinner:     pinner,
		MinBalance: new(big.Int).Set(minBalance),
		logger:     logger.With("module", "service"),
	}
}

// UploadAndPin returns the furthest stage reached alongside any error. A
// denial returns the decision with an INSUFFICIENT_STANDING error.
func (s *UploadService) UploadAndPin(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	mode := entity.ModeFromStakeFlag(req.Stake)
	log := s.logger.With("request_id", req.RequestID, "address", req.Address, "mode", mode.String())
	result := &UploadResult{Stage: StageStart}

	// 1. keypair
	kp, err := s.Verifier.Verify(req.Mnemonic, req.Address)
	if err != nil {
		log.WarnContext(ctx, "identity verification failed", "error_code", wrapErrors.CodeOf(err), "error", err.Error())
		return result, err
	}
	result.Stage = StageVerified

	// 2. balance
	observed, err := s.Oracle.Query(ctx, entity.BalanceQuery{Address: kp.Address, Mode: mode})
	if err != nil {
		log.ErrorContext(ctx, "balance query failed", "error_code", wrapErrors.CodeOf(err), "error", err.Error())
		return result, err
	}
	result.Stage = StageBalanceChecked

	// 3. admission
	decision := domain.Decide(observed, s.MinBalance)
	result.Decision = &decision
	if !decision.Authorized {
		log.InfoContext(ctx, "upload denied",
			"observed", decision.ObservedBalance.String(),
			"observed_torus", utils.PlanckToTorus(decision.ObservedBalance),
			"threshold", decision.Threshold.String(),
		)
		return result, wrapErrors.New(wrapErrors.CodeInsufficientStanding, "admission", "insufficient balance")
	}
	result.Stage = StageAuthorized

	// 4. pin
	receipt, err := s.Pinner.PinAndStore(ctx, req.Payload, kp.Address)
	if err != nil {
		log.ErrorContext(ctx, "pinning failed",
			"filename", req.Payload.Filename,
			"upload_bytes", req.Payload.Size,
			"error_code", wrapErrors.CodeOf(err),
			"error", err.Error(),
		)
		return result, err
	}
	result.Stage = StagePinned
	result.Receipt = receipt
	log.InfoContext(ctx, "file pinned",
		"cid", receipt.ContentID,
		"size", receipt.Size,
		"upload_bytes", req.Payload.Size,
		"observed", decision.ObservedBalance.String(),
	)
	return result, nil
}
