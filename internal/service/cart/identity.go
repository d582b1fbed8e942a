package cart

import (
	"sort"
	"strconv"
	"strings"

	"printstore/internal/domain"
)

// identityKey is the merge key of a line item. Two adds collapse into one line
// only when product, every customization pair, design and user customization
// all match. Customization keys are sorted so insertion order never matters.
func identityKey(item domain.CartLineItem) string {
	var b strings.Builder
	writeField(&b, item.ProductID)

	keys := make([]string, 0, len(item.SelectedCustomizations))
	for k := range item.SelectedCustomizations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for _, k := range keys {
		writeField(&b, k)
		writeField(&b, item.SelectedCustomizations[k])
	}
	b.WriteByte('}')

	if item.Design != nil {
		writeField(&b, item.Design.ID)
	} else {
		writeField(&b, "")
	}
	if item.UserCustomization != nil {
		writeField(&b, item.UserCustomization.Type)
		writeField(&b, item.UserCustomization.Value)
	} else {
		writeField(&b, "")
		writeField(&b, "")
	}
	return b.String()
}

// writeField length-prefixes values so no separator can be forged by content.
func writeField(b *strings.Builder, v string) {
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteByte(':')
	b.WriteString(v)
}

// normalizeCustomizations trims keys and values and drops empty keys.
func normalizeCustomizations(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeDesign(in *domain.DesignReference) *domain.DesignReference {
	if in == nil || strings.TrimSpace(in.ID) == "" {
		return nil
	}
	return &domain.DesignReference{
		ID:         strings.TrimSpace(in.ID),
		PreviewURL: strings.TrimSpace(in.PreviewURL),
	}
}

func normalizeUserCustomization(in *domain.UserCustomization) *domain.UserCustomization {
	if in == nil {
		return nil
	}
	kind := strings.ToLower(strings.TrimSpace(in.Type))
	value := strings.TrimSpace(in.Value)
	if kind == "" || value == "" {
		return nil
	}
	return &domain.UserCustomization{Type: kind, Value: value}
}
