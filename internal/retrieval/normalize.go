// internal/retrieval/normalize.go
package retrieval

import (
	stdjson "encoding/json"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/mlecomte/favsync/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rawItem mirrors the upstream favorite record loosely. Field shapes drift
// between API revisions (numeric vs string ids, object vs bare prices,
// records wrapped in an "item" envelope), so everything polymorphic stays
// raw until normalization.
type rawItem struct {
	ID         stdjson.RawMessage `json:"id"`
	Title      string             `json:"title"`
	BrandTitle string             `json:"brand_title"`
	SizeTitle  string             `json:"size_title"`
	Size       string             `json:"size"`
	Status     string             `json:"status"`
	Category   string             `json:"category"`
	Price      stdjson.RawMessage `json:"price"`
	URL        string             `json:"url"`
	IsClosed   bool               `json:"is_closed"`
	Photo      *struct {
		URL         string `json:"url"`
		FullSizeURL string `json:"full_size_url"`
	} `json:"photo"`
	User *struct {
		Login string `json:"login"`
	} `json:"user"`
	Item *rawItem `json:"item"`
}

// Normalize maps one raw upstream record onto the canonical FavoriteItem.
// A missing external id makes the record unusable (false); every other
// malformed field degrades to its zero value.
func Normalize(raw stdjson.RawMessage) (schemas.FavoriteItem, bool) {
	var r rawItem
	if err := json.Unmarshal(raw, &r); err != nil {
		return schemas.FavoriteItem{}, false
	}
	// Some API revisions wrap the listing under an "item" key.
	if r.Item != nil {
		r = *r.Item
	}

	externalID := idString(r.ID)
	if externalID == "" {
		return schemas.FavoriteItem{}, false
	}

	sizeLabel := r.SizeTitle
	if sizeLabel == "" {
		sizeLabel = r.Size
	}

	var imageURL string
	if r.Photo != nil {
		imageURL = r.Photo.URL
		if imageURL == "" {
			imageURL = r.Photo.FullSizeURL
		}
	}

	var seller string
	if r.User != nil {
		seller = r.User.Login
	}

	return schemas.FavoriteItem{
		ExternalID:   externalID,
		Title:        r.Title,
		Brand:        r.BrandTitle,
		SizeLabel:    sizeLabel,
		Condition:    r.Status,
		Category:     r.Category,
		Price:        priceValue(r.Price),
		ImageURL:     imageURL,
		ProductURL:   r.URL,
		SellerHandle: seller,
		Sold:         r.IsClosed || strings.EqualFold(r.Status, "sold"),
	}, true
}

// idString accepts numeric and string ids.
func idString(raw stdjson.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n stdjson.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// priceValue accepts `{"amount": "19,99"}`, `{"amount": 19.99}`, a bare
// number, or a bare string. Anything unparseable or negative is 0.
func priceValue(raw stdjson.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var obj struct {
		Amount stdjson.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.Amount) > 0 {
		return amountValue(obj.Amount)
	}
	return amountValue(raw)
}

func amountValue(raw stdjson.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f < 0 {
			return 0
		}
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	// Locale-formatted amounts use a decimal comma.
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
