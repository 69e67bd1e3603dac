package orders

import (
	"strings"

	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
	"github.com/digitalrevolution/dr-backend/pkg/types"
)

const (
	placeholderFirstName = "Unknown"
	placeholderLastName  = "Customer"
)

// ResolveShippingAddress builds the order's shipping address from the
// processor's shipping details, falling back to customer details field by
// field. When no name is known at all the placeholder name is used.
func ResolveShippingAddress(shipping, customer *pkgstripe.ContactDetails) types.ShippingAddress {
	name := firstNonEmpty(contactName(shipping), contactName(customer))
	var addr types.ShippingAddress
	if name == "" {
		addr.FirstName, addr.LastName = placeholderFirstName, placeholderLastName
	} else {
		addr.FirstName, addr.LastName = SplitName(name)
	}

	var source *pkgstripe.Address
	switch {
	case shipping != nil && !shipping.Address.IsZero():
		source = shipping.Address
	case customer != nil && !customer.Address.IsZero():
		source = customer.Address
	}
	if source != nil {
		addr.Line1 = source.Line1
		addr.Line2 = optional(source.Line2)
		addr.City = source.City
		addr.State = source.State
		addr.Country = source.Country
		addr.PostalCode = source.PostalCode
	}

	addr.Phone = optional(firstNonEmpty(contactPhone(shipping), contactPhone(customer)))
	return addr
}

// SplitName treats the first token as the first name and the rest as the last
// name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func contactName(c *pkgstripe.ContactDetails) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Name)
}

func contactPhone(c *pkgstripe.ContactDetails) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Phone)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
