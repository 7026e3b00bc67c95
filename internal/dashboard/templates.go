package dashboard

// Template is a predefined set of widgets.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Widgets     []Widget `json:"widgets"`
}

// TemplateMode selects how LoadTemplate combines template widgets with the
// current dashboard.
type TemplateMode string

const (
	ModeReplace TemplateMode = "replace"
	ModeMerge   TemplateMode = "merge"
)

func coinbaseWidget(name, currency string, quotes ...string) Widget {
	fields := []WidgetField{{Path: "data.currency", Label: "Currency"}}
	for _, q := range quotes {
		fields = append(fields, WidgetField{Path: "data.rates." + q, Label: q + " Price"})
	}
	return Widget{
		Name:            name,
		APIURL:          "https://api.coinbase.com/v2/exchange-rates?currency=" + currency,
		RefreshInterval: 30,
		DisplayMode:     DisplayCard,
		ConnectionType:  ConnectionHTTP,
		SelectedFields:  fields,
	}
}

func forexWidget(name, base string, quotes ...string) Widget {
	fields := []WidgetField{{Path: "base", Label: "Base Currency"}}
	for _, q := range quotes {
		fields = append(fields, WidgetField{Path: "rates." + q, Label: q})
	}
	return Widget{
		Name:            name,
		APIURL:          "https://api.exchangerate-api.com/v4/latest/" + base,
		RefreshInterval: 120,
		DisplayMode:     DisplayCard,
		ConnectionType:  ConnectionHTTP,
		SelectedFields:  fields,
	}
}

// Templates returns the built-in templates. The result is a fresh copy.
func Templates() []Template {
	return []Template{
		{
			ID:          "crypto-tracker",
			Name:        "Crypto Tracker",
			Description: "Live cryptocurrency prices from Coinbase (no API key needed)",
			Icon:        "₿",
			Widgets: []Widget{
				coinbaseWidget("Bitcoin (BTC)", "BTC", "USD", "EUR", "GBP"),
				coinbaseWidget("Ethereum (ETH)", "ETH", "USD", "EUR"),
				coinbaseWidget("Litecoin (LTC)", "LTC", "USD"),
				coinbaseWidget("Solana (SOL)", "SOL", "USD"),
			},
		},
		{
			ID:          "forex-monitor",
			Name:        "Forex Monitor",
			Description: "Live currency exchange rates (no API key needed)",
			Icon:        "💱",
			Widgets: []Widget{
				forexWidget("USD Rates", "USD", "EUR", "GBP", "JPY", "INR"),
				forexWidget("EUR Rates", "EUR", "USD", "GBP", "INR"),
				forexWidget("INR Rates", "INR", "USD", "EUR", "GBP"),
			},
		},
	}
}

// TemplateByID looks up a built-in template.
func TemplateByID(id string) (Template, bool) {
	for _, t := range Templates() {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
