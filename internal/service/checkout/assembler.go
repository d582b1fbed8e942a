package checkout

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"printstore/internal/domain"
	"printstore/internal/pricing"
)

// Upload is a design file the shopper attached for one cart line.
type Upload struct {
	LineID   string
	Filename string
	Data     []byte
}

// Assembler turns a cart into the order API payload. It never talks to the
// network.
type Assembler struct {
	MaxDesignBytes int64
}

// Assemble validates the cart and builds the order request. Local validation
// failures are CodeValidation; a line whose price cannot be resolved is
// CodeInternal wrapping pricing.ErrPriceInfoMissing.
func (a Assembler) Assemble(state domain.CartState, infos map[string]domain.PriceInfo, shopper domain.Shopper, uploads []Upload) (domain.OrderRequest, error) {
	if len(state.Items) == 0 {
		return domain.OrderRequest{}, domain.NewError(domain.CodeValidation, "cart is empty")
	}

	lines := make(map[string]struct{}, len(state.Items))
	products := make([]domain.OrderProduct, 0, len(state.Items))
	subtotal := 0.0
	for _, item := range state.Items {
		if item.Quantity < 1 {
			return domain.OrderRequest{}, domain.Errorf(domain.CodeValidation, "line %s has quantity %d", item.LineID, item.Quantity)
		}
		info, ok := infos[item.ProductID]
		if !ok {
			return domain.OrderRequest{}, domain.WrapError(domain.CodeInternal,
				fmt.Errorf("%w: %s", pricing.ErrPriceInfoMissing, item.ProductID),
				"cart contains products that are no longer available")
		}
		unit := pricing.UnitPrice(info.BasePrice, info.BulkTiers, item.Quantity)
		subtotal += unit * float64(item.Quantity)

		kind, value := dominantCustomization(item)
		custom := item.SelectedCustomizations
		if custom == nil {
			custom = map[string]string{}
		}
		products = append(products, domain.OrderProduct{
			ProductID:              item.ProductID,
			Quantity:               item.Quantity,
			SelectedCustomizations: custom,
			UserCustomizationType:  kind,
			UserCustomizationValue: value,
			IndividualPrice:        pricing.Round(unit),
		})
		lines[item.LineID] = struct{}{}
	}

	designs, err := a.designs(uploads, lines)
	if err != nil {
		return domain.OrderRequest{}, err
	}

	order := domain.OrderRequest{
		Products:   products,
		Shopper:    shopper,
		TotalPrice: pricing.Round(pricing.DiscountedTotal(subtotal, state.Discount)),
		Designs:    designs,
	}
	if state.Discount.IsValid {
		order.DiscountCode = state.Discount.Code
	}
	return order, nil
}

// dominantCustomization picks the single customization reported to the order
// API: the shopper's own input first, then an attached design, then a color
// choice.
func dominantCustomization(item domain.CartLineItem) (string, string) {
	if uc := item.UserCustomization; uc != nil && uc.Type != "" {
		return uc.Type, uc.Value
	}
	if d := item.Design; d != nil && d.ID != "" {
		if d.PreviewURL != "" {
			return domain.CustomizationImage, d.PreviewURL
		}
		return domain.CustomizationImage, d.ID
	}
	if color, ok := item.SelectedCustomizations[domain.CustomizationColor]; ok && color != "" {
		return domain.CustomizationColor, color
	}
	return "", ""
}

var errNotImage = errors.New("design must be an image")

func (a Assembler) designs(uploads []Upload, lines map[string]struct{}) ([]domain.DesignFile, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(uploads))
	out := make([]domain.DesignFile, 0, len(uploads))
	for _, up := range uploads {
		lineID := strings.TrimSpace(up.LineID)
		if _, ok := lines[lineID]; !ok {
			return nil, domain.Errorf(domain.CodeValidation, "design attached to unknown line %q", lineID)
		}
		if _, dup := seen[lineID]; dup {
			return nil, domain.Errorf(domain.CodeValidation, "more than one design for line %q", lineID)
		}
		seen[lineID] = struct{}{}

		if len(up.Data) == 0 {
			return nil, domain.Errorf(domain.CodeValidation, "design for line %q is empty", lineID)
		}
		if a.MaxDesignBytes > 0 && int64(len(up.Data)) > a.MaxDesignBytes {
			return nil, domain.Errorf(domain.CodeValidation, "design for line %q exceeds %d bytes", lineID, a.MaxDesignBytes)
		}
		mtype := mimetype.Detect(up.Data)
		if !strings.HasPrefix(mtype.String(), "image/") {
			return nil, domain.WrapError(domain.CodeValidation, errNotImage,
				fmt.Sprintf("design for line %q must be an image, got %s", lineID, mtype.String()))
		}

		name := path.Base(strings.ReplaceAll(strings.TrimSpace(up.Filename), "\\", "/"))
		if name == "" || name == "." || name == "/" {
			name = "design-" + lineID + mtype.Extension()
		}
		out = append(out, domain.DesignFile{
			LineID:      lineID,
			Filename:    name,
			ContentType: mtype.String(),
			Data:        up.Data,
		})
	}
	return out, nil
}
