package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
)

func testDepositConfig() DepositConfig {
	return DepositConfig{
		Treasury:       "UQtreasury00000000000000000000000000000000000000",
		DefaultNano:    200000000,
		IntentTTL:      30 * time.Minute,
		MinObservation: 20 * time.Second,
		MatchTolerance: 90 * time.Second,
	}
}

type depositHarness struct {
	svc      *DepositService
	balances *fakeBalances
	intents  *fakeIntents
	markers  *fakeMarkers
	querier  *fakeQuerier
}

func newDepositHarness(cfg DepositConfig) *depositHarness {
	h := &depositHarness{
		balances: newFakeBalances(),
		intents:  newFakeIntents(),
		markers:  newFakeMarkers(),
		querier:  &fakeQuerier{},
	}
	h.svc = NewDepositService(cfg, h.querier, h.intents, h.markers, h.balances, nil, discardLogger())
	h.svc.salt = func() int64 { return 734 }
	return h
}

func TestCreateIntent_SaltsAmount(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	intent, err := h.svc.CreateIntent(ctx, 200000000)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if intent.AmountNano != 200000734 {
		t.Errorf("exact amount = %d, want 200000734", intent.AmountNano)
	}
	if intent.NominalNano != 200000000 {
		t.Errorf("nominal = %d, want 200000000", intent.NominalNano)
	}
	if intent.Status != domain.DepositCreated {
		t.Errorf("status = %q, want created", intent.Status)
	}
	if intent.Comment != "ICEWHEEL:"+intent.ID {
		t.Errorf("comment = %q, want ICEWHEEL:%s", intent.Comment, intent.ID)
	}
}

func TestCreateIntent_SaltCollisionRetries(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	salts := []int64{734, 734, 88} // first retry collides, second succeeds
	i := 0
	h.svc.salt = func() int64 {
		s := salts[i%len(salts)]
		i++
		return s
	}

	first, err := h.svc.CreateIntent(ctx, 200000000)
	if err != nil {
		t.Fatalf("first CreateIntent: %v", err)
	}
	second, err := h.svc.CreateIntent(ctx, 200000000)
	if err != nil {
		t.Fatalf("second CreateIntent: %v", err)
	}
	if first.AmountNano == second.AmountNano {
		t.Errorf("concurrent intents share exact amount %d", first.AmountNano)
	}
	if second.AmountNano != 200000088 {
		t.Errorf("second exact amount = %d, want 200000088", second.AmountNano)
	}
}

func TestCreateIntent_DefaultAmount(t *testing.T) {
	h := newDepositHarness(testDepositConfig())
	intent, err := h.svc.CreateIntent(context.Background(), 0)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if intent.NominalNano != 200000000 {
		t.Errorf("nominal = %d, want configured default", intent.NominalNano)
	}
}

func TestConfirm_Lifecycle(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	created := time.UnixMilli(1_700_000_000_000)
	h.svc.now = func() time.Time { return created }

	intent, err := h.svc.CreateIntent(ctx, 200000000)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	// Before the observation delay: wait, and the chain is not consulted.
	h.querier.err = errors.New("must not be called")
	res, err := h.svc.Confirm(ctx, intent.ID, "A")
	if err != nil {
		t.Fatalf("Confirm (early): %v", err)
	}
	if res.Status != domain.ConfirmWait {
		t.Errorf("status = %q, want wait", res.Status)
	}
	h.querier.err = nil

	// After the delay with no matching transfer: pending, intent parked.
	h.svc.now = func() time.Time { return created.Add(25 * time.Second) }
	res, err = h.svc.Confirm(ctx, intent.ID, "A")
	if err != nil {
		t.Fatalf("Confirm (no transfer): %v", err)
	}
	if res.Status != domain.ConfirmPending {
		t.Errorf("status = %q, want pending", res.Status)
	}
	if parked, _ := h.intents.Pending(ctx, "A"); len(parked) != 1 {
		t.Errorf("parked intents = %v, want one", parked)
	}

	// The exact transfer lands: credited, exactly once across 5 calls.
	h.querier.setTransfers([]domain.Transfer{{
		ID:         "tx-1",
		AmountNano: 200000734,
		Comment:    intent.Comment,
		HasComment: true,
		Timestamp:  created.Add(10 * time.Second),
	}})

	for i := 0; i < 5; i++ {
		res, err = h.svc.Confirm(ctx, intent.ID, "A")
		if err != nil {
			t.Fatalf("Confirm (call %d): %v", i, err)
		}
		if res.Status != domain.ConfirmCredited {
			t.Errorf("call %d status = %q, want credited", i, res.Status)
		}
		if res.CreditedNano != 200000000 {
			t.Errorf("call %d credited = %d, want nominal 200000000", i, res.CreditedNano)
		}
		if res.NewlyCredited != (i == 0) {
			t.Errorf("call %d NewlyCredited = %v", i, res.NewlyCredited)
		}
	}

	if bal, _ := h.balances.Get(ctx, "A"); bal != 200000000 {
		t.Errorf("balance = %d, want single credit of 200000000", bal)
	}
	if parked, _ := h.intents.Pending(ctx, "A"); len(parked) != 0 {
		t.Errorf("parked intents after credit = %v, want empty", parked)
	}
}

func TestConfirm_NotFound(t *testing.T) {
	h := newDepositHarness(testDepositConfig())
	_, err := h.svc.Confirm(context.Background(), "missing", "A")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConfirm_MatchingRules(t *testing.T) {
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_000)

	setup := func(cfg DepositConfig) (*depositHarness, domain.DepositIntent) {
		h := newDepositHarness(cfg)
		h.svc.now = func() time.Time { return created }
		intent, err := h.svc.CreateIntent(ctx, 200000000)
		if err != nil {
			t.Fatalf("CreateIntent: %v", err)
		}
		h.svc.now = func() time.Time { return created.Add(time.Minute) }
		return h, intent
	}

	t.Run("wrong amount never matches", func(t *testing.T) {
		h, intent := setup(testDepositConfig())
		h.querier.setTransfers([]domain.Transfer{{
			ID: "tx", AmountNano: 200000000, Comment: intent.Comment, HasComment: true,
			Timestamp: created.Add(time.Second),
		}})
		res, _ := h.svc.Confirm(ctx, intent.ID, "A")
		if res.Status != domain.ConfirmPending {
			t.Errorf("unsalted amount matched: %q", res.Status)
		}
	})

	t.Run("wrong comment never matches", func(t *testing.T) {
		h, intent := setup(testDepositConfig())
		h.querier.setTransfers([]domain.Transfer{{
			ID: "tx", AmountNano: 200000734, Comment: "ICEWHEEL:someone-else", HasComment: true,
			Timestamp: created.Add(time.Second),
		}})
		res, _ := h.svc.Confirm(ctx, intent.ID, "A")
		if res.Status != domain.ConfirmPending {
			t.Errorf("foreign comment matched: %q", res.Status)
		}
	})

	t.Run("too-old transfer never matches", func(t *testing.T) {
		h, intent := setup(testDepositConfig())
		h.querier.setTransfers([]domain.Transfer{{
			ID: "tx", AmountNano: 200000734, Comment: intent.Comment, HasComment: true,
			Timestamp: created.Add(-10 * time.Minute),
		}})
		res, _ := h.svc.Confirm(ctx, intent.ID, "A")
		if res.Status != domain.ConfirmPending {
			t.Errorf("stale transfer matched: %q", res.Status)
		}
	})

	t.Run("commentless transfer needs the amount-only flag", func(t *testing.T) {
		h, intent := setup(testDepositConfig())
		h.querier.setTransfers([]domain.Transfer{{
			ID: "tx", AmountNano: 200000734, Timestamp: created.Add(time.Second),
		}})
		res, _ := h.svc.Confirm(ctx, intent.ID, "A")
		if res.Status != domain.ConfirmPending {
			t.Errorf("commentless transfer matched without the flag: %q", res.Status)
		}

		cfg := testDepositConfig()
		cfg.AllowAmountOnlyMatch = true
		h, intent = setup(cfg)
		h.querier.setTransfers([]domain.Transfer{{
			ID: "tx", AmountNano: 200000734, Timestamp: created.Add(time.Second),
		}})
		res, _ = h.svc.Confirm(ctx, intent.ID, "A")
		if res.Status != domain.ConfirmCredited {
			t.Errorf("amount-only mode did not match: %q", res.Status)
		}
	})
}

func TestConfirm_QueryFailureMutatesNothing(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	created := time.UnixMilli(1_700_000_000_000)
	h.svc.now = func() time.Time { return created }
	intent, err := h.svc.CreateIntent(ctx, 200000000)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	h.svc.now = func() time.Time { return created.Add(time.Minute) }
	h.querier.err = errors.New("tonapi unavailable")

	if _, err := h.svc.Confirm(ctx, intent.ID, "A"); err == nil {
		t.Fatal("expected error when the chain query fails")
	}
	if bal, _ := h.balances.Get(ctx, "A"); bal != 0 {
		t.Errorf("balance mutated to %d on query failure", bal)
	}
	if got, _ := h.intents.Get(ctx, intent.ID); got.Status != domain.DepositCreated {
		t.Errorf("intent status mutated to %q on query failure", got.Status)
	}
}

func TestConfirm_ConcurrentCallsCreditOnce(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	created := time.UnixMilli(1_700_000_000_000)
	h.svc.now = func() time.Time { return created }
	intent, err := h.svc.CreateIntent(ctx, 200000000)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	h.svc.now = func() time.Time { return created.Add(time.Minute) }
	h.querier.setTransfers([]domain.Transfer{{
		ID: "tx-1", AmountNano: 200000734, Comment: intent.Comment, HasComment: true,
		Timestamp: created.Add(time.Second),
	}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.svc.Confirm(ctx, intent.ID, "A")
		}()
	}
	wg.Wait()

	if bal, _ := h.balances.Get(ctx, "A"); bal != 200000000 {
		t.Errorf("balance after concurrent confirms = %d, want 200000000", bal)
	}
}

func TestConfirm_TwoIntentsCannotShareTransfer(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	created := time.UnixMilli(1_700_000_000_000)
	h.svc.now = func() time.Time { return created }

	// Two intents whose salted amounts differ, but suppose a buggy caller
	// confirms both against one transfer carrying the first's comment and
	// amount. The credit marker on the transfer id keeps it single-credit
	// even if matching were somehow fooled.
	intentA, err := h.svc.CreateIntent(ctx, 200000000)
	if err != nil {
		t.Fatalf("CreateIntent A: %v", err)
	}

	h.svc.now = func() time.Time { return created.Add(time.Minute) }
	h.querier.setTransfers([]domain.Transfer{{
		ID: "tx-shared", AmountNano: 200000734, Comment: intentA.Comment, HasComment: true,
		Timestamp: created.Add(time.Second),
	}})

	if _, err := h.svc.Confirm(ctx, intentA.ID, "A"); err != nil {
		t.Fatalf("Confirm A: %v", err)
	}

	// Force a second intent that would match the same transfer.
	forged := domain.DepositIntent{
		ID: "forged", Treasury: h.svc.cfg.Treasury,
		AmountNano: 200000734, NominalNano: 200000000,
		Comment: intentA.Comment, CreatedAt: created, Status: domain.DepositCreated,
	}
	h.intents.Put(ctx, forged, time.Minute)

	res, err := h.svc.Confirm(ctx, "forged", "B")
	if err != nil {
		t.Fatalf("Confirm forged: %v", err)
	}
	if res.Status != domain.ConfirmCredited {
		t.Fatalf("forged status = %q, want credited (finalize-only)", res.Status)
	}
	if bal, _ := h.balances.Get(ctx, "B"); bal != 0 {
		t.Errorf("second account credited %d from an already-credited transfer", bal)
	}
}

func TestResume_ChecksParkedIntents(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	created := time.UnixMilli(1_700_000_000_000)
	h.svc.now = func() time.Time { return created }

	salts := []int64{100, 200, 300}
	i := 0
	h.svc.salt = func() int64 { s := salts[i%len(salts)]; i++; return s }

	var intents []domain.DepositIntent
	for j := 0; j < 3; j++ {
		intent, err := h.svc.CreateIntent(ctx, 200000000)
		if err != nil {
			t.Fatalf("CreateIntent %d: %v", j, err)
		}
		intents = append(intents, intent)
		h.intents.AddPending(ctx, "A", intent.ID)
	}
	// Plus one that expired from the store.
	h.intents.AddPending(ctx, "A", "expired-intent")

	h.svc.now = func() time.Time { return created.Add(time.Minute) }
	// Only the second intent's transfer has landed.
	h.querier.setTransfers([]domain.Transfer{{
		ID: "tx-2", AmountNano: intents[1].AmountNano, Comment: intents[1].Comment, HasComment: true,
		Timestamp: created.Add(time.Second),
	}})

	checked, credited, pending, err := h.svc.Resume(ctx, "A")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if checked != 4 {
		t.Errorf("checked = %d, want 4", checked)
	}
	if credited != 1 {
		t.Errorf("credited = %d, want 1", credited)
	}
	if pending != 2 {
		t.Errorf("pending = %d, want 2", pending)
	}
	if bal, _ := h.balances.Get(ctx, "A"); bal != 200000000 {
		t.Errorf("balance = %d, want 200000000", bal)
	}
	// The expired intent is no longer parked.
	parked, _ := h.intents.Pending(ctx, "A")
	for _, id := range parked {
		if id == "expired-intent" {
			t.Error("expired intent still parked after resume")
		}
	}
}

func TestResume_Batches(t *testing.T) {
	ctx := context.Background()
	h := newDepositHarness(testDepositConfig())

	created := time.UnixMilli(1_700_000_000_000)
	h.svc.now = func() time.Time { return created }
	i := int64(0)
	h.svc.salt = func() int64 { i++; return i }

	for j := 0; j < 9; j++ {
		intent, err := h.svc.CreateIntent(ctx, 200000000)
		if err != nil {
			t.Fatalf("CreateIntent %d: %v", j, err)
		}
		h.intents.AddPending(ctx, "A", intent.ID)
	}

	h.svc.now = func() time.Time { return created.Add(time.Minute) }
	checked, _, _, err := h.svc.Resume(ctx, "A")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if checked != resumeBatch {
		t.Errorf("checked = %d, want batch of %d", checked, resumeBatch)
	}
}
