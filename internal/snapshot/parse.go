package snapshot

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"StockScope/internal/model"
)

// ParseTickers splits comma-separated user input into ticker symbols. Blank
// entries are dropped, duplicates are kept.
func ParseTickers(text string, upper bool) ([]model.TickerSymbol, error) {
	var out []model.TickerSymbol
	for _, part := range strings.Split(text, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		if upper {
			s = strings.ToUpper(s)
		}
		out = append(out, model.TickerSymbol(s))
	}
	if len(out) == 0 {
		return nil, model.ErrMalformedInput
	}
	return out, nil
}

var validate = validator.New()

// ValidateRequest checks a request before anything is fetched.
func ValidateRequest(req model.PortfolioRequest) error {
	if len(req.Tickers) == 0 {
		return model.ErrMalformedInput
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if strings.HasPrefix(fe.StructField(), "Tickers") {
					return model.ErrMalformedInput
				}
			}
		}
		return errors.Wrap(err, "invalid request")
	}
	return nil
}
