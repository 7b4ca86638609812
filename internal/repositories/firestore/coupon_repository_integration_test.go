//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	pconfig "github.com/arbona-turismo/storefront/internal/platform/config"
	pfirestore "github.com/arbona-turismo/storefront/internal/platform/firestore"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

func TestCouponRepositoryConcurrentRedeemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "coupon-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewCouponRepository(provider)
	if err != nil {
		t.Fatalf("new coupon repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	limit := int64(3)
	now := time.Now().UTC()
	if _, err := repo.Insert(ctx, domain.Coupon{
		ID:           "c-limited",
		Code:         "LIMITADO",
		DiscountType: domain.DiscountFixed,
		Value:        500,
		Active:       true,
		UsageLimit:   &limit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("insert coupon: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var succeeded, exhausted int64
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.Redeem(ctx, "c-limited", time.Now())
			if err == nil {
				atomic.AddInt64(&succeeded, 1)
				return
			}
			var couponErr *repositories.CouponError
			if errors.As(err, &couponErr) && couponErr.Code == repositories.CouponErrorExhausted {
				atomic.AddInt64(&exhausted, 1)
				return
			}
			t.Errorf("unexpected redeem error: %v", err)
		}()
	}

	wg.Wait()

	if succeeded != limit {
		t.Fatalf("expected %d successful redemptions got %d", limit, succeeded)
	}
	if exhausted != int64(workers)-limit {
		t.Fatalf("expected %d exhausted redemptions got %d", int64(workers)-limit, exhausted)
	}

	stored, err := repo.FindByID(ctx, "c-limited")
	if err != nil {
		t.Fatalf("find coupon: %v", err)
	}
	if stored.UsedCount != limit {
		t.Fatalf("expected used count %d got %d", limit, stored.UsedCount)
	}
}
