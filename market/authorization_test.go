package market

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestGateCollectionTierWins(t *testing.T) {
	ml := newMockLedger()
	ml.collectionApproved[ml.sender] = true
	// A conflicting per-asset approval must not matter: the broader grant is
	// checked first and settles the question.
	ml.assetApproved[key(big.NewInt(1))] = ml.sender
	gate := NewGate(ml, ml.operator)

	auth := gate.Check(context.Background(), ml.sender, big.NewInt(1))
	if !auth.Authorized || auth.Tier != TierCollection {
		t.Fatalf("expected collection tier, got %+v", auth)
	}
	if ml.callCount("readAssetApproval") != 0 {
		t.Fatalf("asset approval read should be skipped: %v", ml.calls)
	}
}

func TestGateAssetTier(t *testing.T) {
	ml := newMockLedger()
	ml.assetApproved[key(big.NewInt(1))] = ml.operator
	gate := NewGate(ml, ml.operator)

	auth := gate.Check(context.Background(), ml.sender, big.NewInt(1))
	if !auth.Authorized || auth.Tier != TierAsset {
		t.Fatalf("expected asset tier, got %+v", auth)
	}
}

func TestGateUnauthorized(t *testing.T) {
	ml := newMockLedger()
	gate := NewGate(ml, ml.operator)

	auth := gate.Check(context.Background(), ml.sender, big.NewInt(1))
	if auth.Authorized || auth.Tier != TierNone {
		t.Fatalf("expected unauthorized, got %+v", auth)
	}
}

func TestGateFailsClosedOnReadErrors(t *testing.T) {
	ml := newMockLedger()
	ml.collectionErr = errors.New("rpc timeout")
	ml.assetErr = errors.New("rpc timeout")
	gate := NewGate(ml, ml.operator)

	if auth := gate.Check(context.Background(), ml.sender, big.NewInt(1)); auth.Authorized {
		t.Fatalf("read errors must yield not-authorized, got %+v", auth)
	}
}

func TestGateFallsThroughToAssetTierOnCollectionReadError(t *testing.T) {
	ml := newMockLedger()
	ml.collectionErr = errors.New("rpc timeout")
	ml.assetApproved[key(big.NewInt(1))] = ml.operator
	gate := NewGate(ml, ml.operator)

	auth := gate.Check(context.Background(), ml.sender, big.NewInt(1))
	if !auth.Authorized || auth.Tier != TierAsset {
		t.Fatalf("expected asset tier despite collection read failure, got %+v", auth)
	}
}
