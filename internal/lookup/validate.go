package lookup

import (
	"fmt"
	"strings"

	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/validation"
)

// MaxNameLength bounds author and publisher names.
const MaxNameLength = 512

var validate = validation.New()

// normalizeItem validates an item and returns its normalized payload.
func normalizeItem(kind Kind, payload Payload, priority Priority) (Payload, error) {
	if err := validate.Var(string(kind), "required,oneof=book author publisher"); err != nil {
		return payload, fmt.Errorf("%w: kind %q", ErrInvalidItem, kind)
	}
	if err := validate.Var(string(priority), "required,oneof=high low"); err != nil {
		return payload, fmt.Errorf("%w: priority %q", ErrInvalidItem, priority)
	}

	if kind == KindBook {
		if err := validate.Var(payload.ISBN, "required,isbn"); err != nil {
			return payload, fmt.Errorf("%w: isbn %q", ErrInvalidItem, payload.ISBN)
		}
		return Payload{ISBN: isbndb.NormalizeISBN(payload.ISBN)}, nil
	}

	name := strings.TrimSpace(payload.Name)
	if err := validate.Var(name, fmt.Sprintf("required,max=%d", MaxNameLength)); err != nil {
		return payload, fmt.Errorf("%w: %s name %q", ErrInvalidItem, kind, payload.Name)
	}
	return Payload{Name: name}, nil
}
