package validation

// DeclineOrderRequest is the payload for POST /orders/:id/decline.
// Reason is one of the preset reasons or "Other"; CustomReason carries the
// free text in the latter case.
type DeclineOrderRequest struct {
	Reason       string `json:"reason" validate:"required"`
	CustomReason string `json:"custom_reason,omitempty"`
}

// MenuItemRequest is the payload for creating or updating a menu item.
type MenuItemRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	PrepTime    int     `json:"prep_time" validate:"required,min=1"` // minutes
	Available   bool    `json:"available"`
	ImageURL    string  `json:"image_url,omitempty" validate:"omitempty,url"`
}

// MenuReplaceRequest is the payload for bulk menu replacement.
type MenuReplaceRequest struct {
	Items []MenuItemWithID `json:"items" validate:"required,dive"`
}

// MenuItemWithID is a menu item payload optionally carrying an existing id.
type MenuItemWithID struct {
	ItemID string `json:"item_id,omitempty"`
	MenuItemRequest
}

// ProfileUpdateRequest is the payload for PATCH profile. Absent fields are
// left unchanged.
type ProfileUpdateRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	LogoURL *string `json:"logo_url,omitempty" validate:"omitempty,url"`
	IsOpen  *bool   `json:"is_open,omitempty"`
}
