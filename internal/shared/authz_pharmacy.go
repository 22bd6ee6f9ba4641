package shared

// Pharmacy goods receipt permissions.
const (
	PermGRNView    = "pharmacy.grn.view"
	PermGRNCreate  = "pharmacy.grn.create"
	PermGRNApprove = "pharmacy.grn.approve"

	PermStockView = "pharmacy.stock.view"
)

// PharmacyScopes lists all permissions related to goods receipts and stock.
func PharmacyScopes() []string {
	return []string{
		PermGRNView,
		PermGRNCreate,
		PermGRNApprove,
		PermStockView,
	}
}
