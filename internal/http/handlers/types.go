package handlers

import (
	"encoding/json"
	"time"

	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/locations"
	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/modules/vehicles"
)

// Response DTOs. Models never leave the service layer unmapped; the user
// mapping in particular exists so the password hash cannot leak.

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u users.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type locationDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toLocationDTO(l locations.Location) locationDTO {
	return locationDTO{
		ID:        l.ID,
		Name:      l.Name,
		City:      l.City,
		Address:   l.Address,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

type specDTO struct {
	Seats        int      `json:"seats"`
	Doors        int      `json:"doors"`
	Transmission string   `json:"transmission"`
	FuelType     string   `json:"fuel_type"`
	Consumption  *string  `json:"consumption,omitempty"`
	Features     []string `json:"features,omitempty"`
}

func toSpecDTO(s vehicles.Specification) specDTO {
	out := specDTO{
		Seats:        s.Seats,
		Doors:        s.Doors,
		Transmission: s.Transmission,
		FuelType:     s.FuelType,
		Consumption:  s.Consumption,
	}
	if len(s.Features) > 0 {
		_ = json.Unmarshal(s.Features, &out.Features)
	}
	return out
}

type imageDTO struct {
	ID          string    `json:"id"`
	VehicleID   string    `json:"vehicle_id"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Primary     bool      `json:"primary"`
	CreatedAt   time.Time `json:"created_at"`
}

func toImageDTO(img vehicles.VehicleImage) imageDTO {
	return imageDTO{
		ID:          img.ID,
		VehicleID:   img.VehicleID,
		URL:         img.URL,
		ContentType: img.ContentType,
		Primary:     img.Primary,
		CreatedAt:   img.CreatedAt,
	}
}

type vehicleDTO struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Brand       string     `json:"brand"`
	ModelYear   int        `json:"model_year"`
	PlateNumber string     `json:"plate_number"`
	DailyCents  int64      `json:"daily_cents"`
	Currency    string     `json:"currency"`
	Available   bool       `json:"available"`
	LocationID  string     `json:"location_id"`
	Spec        *specDTO   `json:"spec,omitempty"`
	Images      []imageDTO `json:"images,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toVehicleDTO(v vehicles.Vehicle) vehicleDTO {
	out := vehicleDTO{
		ID:          v.ID,
		Slug:        v.Slug,
		Name:        v.Name,
		Brand:       v.Brand,
		ModelYear:   v.ModelYear,
		PlateNumber: v.PlateNumber,
		DailyCents:  v.DailyCents,
		Currency:    v.Currency,
		Available:   v.Available,
		LocationID:  v.LocationID,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
	if v.Spec != nil {
		s := toSpecDTO(*v.Spec)
		out.Spec = &s
	}
	for _, img := range v.Images {
		out.Images = append(out.Images, toImageDTO(img))
	}
	return out
}

func toVehicleDTOs(vs []vehicles.Vehicle) []vehicleDTO {
	out := make([]vehicleDTO, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVehicleDTO(v))
	}
	return out
}

type bookingDTO struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	VehicleID  string    `json:"vehicle_id"`
	LocationID string    `json:"location_id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Days       int64     `json:"days"`
	TotalCents int64     `json:"total_cents"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toBookingDTO(b bookings.Booking) bookingDTO {
	return bookingDTO{
		ID:         b.ID,
		UserID:     b.UserID,
		VehicleID:  b.VehicleID,
		LocationID: b.LocationID,
		StartDate:  b.StartDate.Format(dateLayout),
		EndDate:    b.EndDate.Format(dateLayout),
		Days:       bookings.RentalDays(b.StartDate, b.EndDate),
		TotalCents: b.TotalCents,
		Currency:   b.Currency,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toBookingDTOs(bs []bookings.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingDTO(b))
	}
	return out
}

type paymentDTO struct {
	ID            string         `json:"id"`
	BookingID     *string        `json:"booking_id,omitempty"`
	UserID        string         `json:"user_id"`
	AmountCents   int64          `json:"amount_cents"`
	Currency      string         `json:"currency"`
	Provider      string         `json:"provider"`
	ProviderRef   *string        `json:"provider_ref,omitempty"`
	Status        string         `json:"status"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func toPaymentDTO(p payments.Payment) paymentDTO {
	out := paymentDTO{
		ID:            p.ID,
		BookingID:     p.BookingID,
		UserID:        p.UserID,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		Provider:      p.Provider,
		ProviderRef:   p.ProviderRef,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if len(p.Metadata) > 0 {
		_ = json.Unmarshal(p.Metadata, &out.Metadata)
	}
	return out
}

func toPaymentDTOs(ps []payments.Payment) []paymentDTO {
	out := make([]paymentDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPaymentDTO(p))
	}
	return out
}
