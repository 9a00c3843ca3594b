package models

import "time"

// Photo types captured by the mobile app.
const (
	PhotoFacadeCheckin  = "FACADE_CHECKIN"
	PhotoFacadeCheckout = "FACADE_CHECKOUT"
	PhotoOther          = "OTHER"
)

// PhotoTypeLabel maps a photo type to its report caption.
func PhotoTypeLabel(photoType string) string {
	switch photoType {
	case PhotoFacadeCheckin:
		return "Fachada - Check-in"
	case PhotoFacadeCheckout:
		return "Fachada - Checkout"
	case PhotoOther:
		return "Outra"
	default:
		return "Foto"
	}
}

// Store is a retail location visited by promoters. Read-only here.
type Store struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Promoter is the field user who performed a visit. Read-only here.
type Promoter struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Photo is a single piece of visit evidence. GPS coordinates are optional;
// photos without them render as "Sem GPS".
type Photo struct {
	ID        string    `json:"id"`
	VisitID   string    `json:"visit_id"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Visit is one check-in/check-out cycle at a store, with its photo set
// ordered by capture time ascending. Read-only input to report rendering.
type Visit struct {
	ID               string     `json:"id"`
	StoreID          string     `json:"store_id"`
	PromoterID       string     `json:"promoter_id"`
	CheckInAt        time.Time  `json:"check_in_at"`
	CheckOutAt       *time.Time `json:"check_out_at,omitempty"`
	CheckInLatitude  float64    `json:"check_in_latitude"`
	CheckInLongitude float64    `json:"check_in_longitude"`
	Store            Store      `json:"store"`
	Promoter         Promoter   `json:"promoter"`
	Photos           []Photo    `json:"photos"`
}
