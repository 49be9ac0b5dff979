// Package billing holds the credit package catalog and the boundary the
// payment collaborator calls into when a purchase completes. Checkout session
// creation and webhook verification live outside this service.
package billing

import (
	"context"
	"fmt"

	"stagesmart/internal/domain"
	"stagesmart/internal/ledger"
)

// Package is a purchasable bundle of staging credits.
type Package struct {
	ID       string
	Name     string
	Credits  int
	AmountUS int // price in US cents
}

// Catalog is the fixed set of purchasable packages.
var Catalog = map[string]Package{
	"1pack":  {ID: "1pack", Name: "1 Photo Staging", Credits: 1, AmountUS: 500},
	"5pack":  {ID: "5pack", Name: "5-Pack Staging", Credits: 5, AmountUS: 2500},
	"10pack": {ID: "10pack", Name: "10-Pack Credits", Credits: 10, AmountUS: 4000},
	"50pack": {ID: "50pack", Name: "50-Pack Credits", Credits: 50, AmountUS: 15000},
}

// Grant credits an owner with the contents of a purchased package. The
// payment provider invokes this once per completed purchase.
func Grant(ctx context.Context, creditLedger ledger.Ledger, ownerID, packageID string) (Package, error) {
	pkg, ok := Catalog[packageID]
	if !ok {
		return Package{}, fmt.Errorf("%w: %q", domain.ErrUnknownPackage, packageID)
	}
	if err := creditLedger.Credit(ctx, ownerID, pkg.Credits); err != nil {
		return Package{}, fmt.Errorf("grant package %s: %w", packageID, err)
	}
	return pkg, nil
}
