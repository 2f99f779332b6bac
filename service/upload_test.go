package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/torus-agents/pin_service/domain"
	"github.com/torus-agents/pin_service/entity"
	wrapErrors "github.com/torus-agents/pin_service/errors"
	"github.com/torus-agents/pin_service/utils"
)

const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bobAddress   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	alicePhrase  = "alice secret words"
	bobPhrase    = "bob secret words"
	testCID      = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
)

type fakeVerifier struct {
	derived map[string]string
}

func (f fakeVerifier) Verify(phrase, claimed string) (*domain.Keypair, error) {
	addr, ok := f.derived[phrase]
	if !ok {
		return nil, wrapErrors.New(wrapErrors.CodeInvalidCredential, "derive keypair", "invalid mnemonic")
	}
	if addr != claimed {
		return nil, wrapErrors.New(wrapErrors.CodeIdentityMismatch, "verify keypair", "mnemonic does not match the provided address")
	}
	return &domain.Keypair{Address: addr}, nil
}

type fakeOracle struct {
	t      *testing.T
	forbid bool
	free   map[string]int64
	stakes map[string]map[string]int64
	err    error

	mu      sync.Mutex
	queries []entity.BalanceQuery
}

func (f *fakeOracle) Query(_ context.Context, q entity.BalanceQuery) (*big.Int, error) {
	if f.forbid {
		f.t.Fatalf("oracle queried for %s after a failed verification", q.Address)
	}
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	switch q.Mode {
	case entity.BalanceFree:
		return big.NewInt(f.free[q.Address]), nil
	case entity.BalanceStaked:
		total := new(big.Int)
		for _, amount := range f.stakes[q.Address] {
			total.Add(total, big.NewInt(amount))
		}
		return total, nil
	default:
		return nil, fmt.Errorf("unexpected mode %v", q.Mode)
	}
}

type fakePinner struct {
	t      *testing.T
	forbid bool
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fakePinner) PinAndStore(_ context.Context, p *entity.UploadPayload, pinnedBy string) (*entity.PinReceipt, error) {
	if f.forbid {
		f.t.Fatalf("pin attempted for %s", pinnedBy)
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(p.Body)
	return &entity.PinReceipt{
		ContentID:      testCID,
		Size:           int64(len(body)),
		RemoteMetadata: map[string]any{"IpfsHash": testCID, "PinSize": len(body)},
		PinnedBy:       pinnedBy,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVerifier() fakeVerifier {
	return fakeVerifier{derived: map[string]string{alicePhrase: aliceAddress, bobPhrase: bobAddress}}
}

func uploadRequest(address, phrase string, stake bool) UploadRequest {
	return UploadRequest{
		RequestID: "req-1",
		Address:   address,
		Mnemonic:  phrase,
		Stake:     stake,
		Payload: &entity.UploadPayload{
			Filename:    "notes.txt",
			ContentType: "text/plain",
			Body:        strings.NewReader("hello"),
		},
	}
}

func TestScenarioAFreeBalanceThresholdZeroPins(t *testing.T) {
	oracle := &fakeOracle{t: t, free: map[string]int64{aliceAddress: 10}}
	pinner := &fakePinner{t: t}
	svc := NewUploadService(testVerifier(), oracle, pinner, big.NewInt(0), discardLogger())

	res, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, alicePhrase, false))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Stage != StagePinned {
		t.Fatalf("expected stage %s, got %s", StagePinned, res.Stage)
	}
	if res.Receipt.PinnedBy != aliceAddress {
		t.Fatalf("expected pinnedBy %s, got %s", aliceAddress, res.Receipt.PinnedBy)
	}
	if res.Receipt.Response()["pinnedBy"] != aliceAddress {
		t.Fatalf("response missing pinnedBy: %v", res.Receipt.Response())
	}
	if len(oracle.queries) != 1 || oracle.queries[0].Mode != entity.BalanceFree {
		t.Fatalf("expected one free query, got %+v", oracle.queries)
	}
	if !res.Decision.Authorized || res.Decision.ObservedBalance.Int64() != 10 {
		t.Fatalf("unexpected decision %+v", res.Decision)
	}
}

func TestScenarioBIdentityMismatchStopsBeforeOracle(t *testing.T) {
	oracle := &fakeOracle{t: t, forbid: true}
	pinner := &fakePinner{t: t, forbid: true}
	svc := NewUploadService(testVerifier(), oracle, pinner, big.NewInt(0), discardLogger())

	// bob's phrase derives bob's address, not alice's
	res, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, bobPhrase, false))
	if wrapErrors.CodeOf(err) != wrapErrors.CodeIdentityMismatch {
		t.Fatalf("expected IDENTITY_MISMATCH, got %v", err)
	}
	if res.Stage != StageStart || res.Receipt != nil || res.Decision != nil {
		t.Fatalf("pipeline advanced past verification: %+v", res)
	}
}

func TestIdentityMismatchWithRealVerifier(t *testing.T) {
	oracle := &fakeOracle{t: t, forbid: true}
	pinner := &fakePinner{t: t, forbid: true}
	verifier := domain.NewKeypairVerifier(utils.DefaultSS58Prefix)
	svc := NewUploadService(verifier, oracle, pinner, big.NewInt(0), discardLogger())

	phrase := "bottom drive obey lake curtain smoke basket hold race lonely fit walk"
	_, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, phrase, false))
	if wrapErrors.CodeOf(err) != wrapErrors.CodeIdentityMismatch {
		t.Fatalf("expected IDENTITY_MISMATCH, got %v", err)
	}
}

func TestInvalidCredentialStopsBeforeOracle(t *testing.T) {
	svc := NewUploadService(testVerifier(), &fakeOracle{t: t, forbid: true}, &fakePinner{t: t, forbid: true}, nil, discardLogger())

	_, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, "garbage", false))
	if wrapErrors.CodeOf(err) != wrapErrors.CodeInvalidCredential {
		t.Fatalf("expected INVALID_CREDENTIAL, got %v", err)
	}
}

func TestScenarioCStakeBelowThresholdDenied(t *testing.T) {
	oracle := &fakeOracle{t: t, stakes: map[string]map[string]int64{aliceAddress: {"d1": 30, "d2": 20}}}
	pinner := &fakePinner{t: t, forbid: true}
	svc := NewUploadService(testVerifier(), oracle, pinner, big.NewInt(100), discardLogger())

	res, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, alicePhrase, true))
	if !wrapErrors.IsDenial(err) {
		t.Fatalf("expected INSUFFICIENT_STANDING, got %v", err)
	}
	if res.Stage != StageBalanceChecked {
		t.Fatalf("expected stage %s, got %s", StageBalanceChecked, res.Stage)
	}
	if res.Decision == nil || res.Decision.Authorized {
		t.Fatalf("expected a denial decision, got %+v", res.Decision)
	}
	if res.Decision.ObservedBalance.Int64() != 50 || res.Decision.Threshold.Int64() != 100 {
		t.Fatalf("unexpected decision amounts %+v", res.Decision)
	}
	if oracle.queries[0].Mode != entity.BalanceStaked {
		t.Fatalf("expected staked query, got %s", oracle.queries[0].Mode)
	}
}

func TestStakedNoDelegationsWithZeroThresholdPins(t *testing.T) {
	oracle := &fakeOracle{t: t}
	pinner := &fakePinner{t: t}
	svc := NewUploadService(testVerifier(), oracle, pinner, big.NewInt(0), discardLogger())

	res, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, alicePhrase, true))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Decision.ObservedBalance.Sign() != 0 || res.Stage != StagePinned {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestScenarioDPinTransportFailure(t *testing.T) {
	transportErr := wrapErrors.WrapWithCode(wrapErrors.CodeUploadTransport, "pin file", errors.New("context deadline exceeded (Client.Timeout exceeded while awaiting headers)"))
	oracle := &fakeOracle{t: t, free: map[string]int64{aliceAddress: 10}}
	pinner := &fakePinner{t: t, err: transportErr}
	svc := NewUploadService(testVerifier(), oracle, pinner, big.NewInt(0), discardLogger())

	res, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, alicePhrase, false))
	if wrapErrors.CodeOf(err) != wrapErrors.CodeUploadTransport {
		t.Fatalf("expected UPLOAD_TRANSPORT_ERROR, got %v", err)
	}
	if res.Receipt != nil {
		t.Fatalf("expected no receipt, got %+v", res.Receipt)
	}
	if res.Stage != StageAuthorized {
		t.Fatalf("expected stage %s, got %s", StageAuthorized, res.Stage)
	}
	if pinner.calls != 1 {
		t.Fatalf("expected exactly one pin attempt, got %d", pinner.calls)
	}
}

func TestLedgerFailureStopsBeforePin(t *testing.T) {
	ledgerErr := wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "get free balance", errors.New("connection refused"))
	svc := NewUploadService(testVerifier(), &fakeOracle{t: t, err: ledgerErr}, &fakePinner{t: t, forbid: true}, big.NewInt(0), discardLogger())

	res, err := svc.UploadAndPin(context.Background(), uploadRequest(aliceAddress, alicePhrase, false))
	if wrapErrors.CodeOf(err) != wrapErrors.CodeLedgerUnavailable {
		t.Fatalf("expected LEDGER_UNAVAILABLE, got %v", err)
	}
	if res.Stage != StageVerified {
		t.Fatalf("expected stage %s, got %s", StageVerified, res.Stage)
	}
}

func TestMnemonicNeverLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ledgerErr := wrapErrors.WrapWithCode(wrapErrors.CodeLedgerUnavailable, "get free balance", errors.New("timeout"))

	ok := NewUploadService(testVerifier(), &fakeOracle{t: t}, &fakePinner{t: t}, nil, logger)
	failing := NewUploadService(testVerifier(), &fakeOracle{t: t, err: ledgerErr}, &fakePinner{t: t}, nil, logger)

	_, _ = ok.UploadAndPin(context.Background(), uploadRequest(aliceAddress, alicePhrase, false))
	_, _ = ok.UploadAndPin(context.Background(), uploadRequest(aliceAddress, bobPhrase, false))
	_, _ = failing.UploadAndPin(context.Background(), uploadRequest(aliceAddress, alicePhrase, false))

	if buf.Len() == 0 {
		t.Fatal("expected log output")
	}
	for _, phrase := range []string{alicePhrase, bobPhrase} {
		if strings.Contains(buf.String(), phrase) {
			t.Fatalf("log output contains the mnemonic: %s", buf.String())
		}
	}
}

func TestPinLogCarriesUploadSize(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewUploadService(testVerifier(), &fakeOracle{t: t}, &fakePinner{t: t}, nil, logger)

	req := uploadRequest(aliceAddress, alicePhrase, false)
	req.Payload.Size = 5
	if _, err := svc.UploadAndPin(context.Background(), req); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"upload_bytes":5`) {
		t.Fatalf("expected upload size in logs, got %s", buf.String())
	}
}

func TestConcurrentRequestsAreIndependent(t *testing.T) {
	oracle := &fakeOracle{t: t, free: map[string]int64{aliceAddress: 5, bobAddress: 1}}
	pinner := &fakePinner{t: t}
	svc := NewUploadService(testVerifier(), oracle, pinner, big.NewInt(2), discardLogger())

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	receipts := make([]*entity.PinReceipt, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, phrase := aliceAddress, alicePhrase
			if i%2 == 1 {
				addr, phrase = bobAddress, bobPhrase
			}
			res, err := svc.UploadAndPin(context.Background(), uploadRequest(addr, phrase, false))
			errs[i] = err
			if res != nil {
				receipts[i] = res.Receipt
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if i%2 == 0 {
			if errs[i] != nil || receipts[i] == nil || receipts[i].PinnedBy != aliceAddress {
				t.Fatalf("request %d: expected alice pin, got %v %+v", i, errs[i], receipts[i])
			}
			continue
		}
		if !wrapErrors.IsDenial(errs[i]) || receipts[i] != nil {
			t.Fatalf("request %d: expected bob denial, got %v", i, errs[i])
		}
	}
	if pinner.calls != n/2 {
		t.Fatalf("expected %d pins, got %d", n/2, pinner.calls)
	}
}
