package selector

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sjsage522/menuscout/pkg/errors"

	"github.com/spf13/viper"
)

// Catalog holds every probing site's priority list in one place.
type Catalog struct {
	CookieAccept Candidates
	CookieClose  Candidates

	LoginOpen           Candidates
	EmailInput          Candidates
	PasswordInput       Candidates
	LoginContinue       Candidates
	LoginSubmit         Candidates
	SecondaryAuthInput  Candidates
	SecondaryAuthVerify Candidates
	LoginError          Candidates
	LoggedIn            Candidates

	AddressOpen   Candidates
	AddressOption Candidates

	SearchInput Candidates
	VendorCards Candidates
	VendorReady Candidates

	ProductItems Candidates
	VendorName   Candidates
	ProductName  Candidates
	ProductPrice Candidates

	AddToCart Candidates
	Cart      Candidates
	Checkout  Candidates
}

// DefaultCatalog returns the storefront's selector lists
func DefaultCatalog() *Catalog {
	short := 2 * time.Second

	return &Catalog{
		CookieAccept: append(CSS(
			`#onetrust-accept-btn-handler`,
			`[data-testid="cookie-accept"]`,
			`[data-testid*="accept"]`,
			`.cookie-accept`,
			`.accept-cookies`,
		), Text("button", "Kabul Et"), Text("button", "Tümünü Kabul Et"), Text("button", "Accept All")).WithTimeout(short),
		CookieClose: append(CSS(
			`[data-testid="cookie-close"]`,
			`.cookie-banner .close`,
			`[aria-label="Close"]`,
		), Text("button", "Kapat")).WithTimeout(short),

		LoginOpen: append(CSS(
			`[data-testid="login-button"]`,
			`a[href*="giris"]`,
			`a[href*="login"]`,
		), Text("button", "Giriş Yap"), Text("a", "Giriş Yap")),
		EmailInput: CSS(
			`input[type="email"]`,
			`input[name="email"]`,
			`[data-testid="email-input"]`,
			`#login-email`,
		),
		PasswordInput: CSS(
			`input[type="password"]`,
			`input[name="password"]`,
			`[data-testid="password-input"]`,
			`#login-password`,
		),
		LoginContinue: append(CSS(
			`[data-testid="continue-button"]`,
		), Text("button", "Devam Et"), Text("button", "Devam")).WithTimeout(short),
		LoginSubmit: append(CSS(
			`button[type="submit"]`,
			`[data-testid="login-submit"]`,
		), Text("button", "Giriş Yap")),
		SecondaryAuthInput: CSS(
			`input[name*="otp"]`,
			`input[name*="code"]`,
			`input[autocomplete="one-time-code"]`,
			`[data-testid*="otp"]`,
			`[data-testid*="verification"]`,
			`input[maxlength="6"]`,
		).WithTimeout(500*time.Millisecond),
		SecondaryAuthVerify: append(CSS(
			`[data-testid*="verify"]`,
			`button[type="submit"]`,
		), Text("button", "Doğrula"), Text("button", "Onayla"), Text("button", "Gönder")),
		LoginError: CSS(
			`[data-testid="login-error"]`,
			`.error-message`,
			`.login-error`,
			`[role="alert"]`,
		).WithTimeout(short),
		LoggedIn: CSS(
			`[data-testid="user-menu"]`,
			`[data-testid*="profile"]`,
			`a[href*="hesabim"]`,
			`a[href*="logout"]`,
			`a[href*="cikis"]`,
			`.user-info`,
		).WithTimeout(short),

		AddressOpen: append(CSS(
			`[data-testid="address-selector"]`,
			`[data-testid*="address"]`,
			`.address-selector`,
		), Text("button", "Adres")).WithTimeout(short),
		// Narrowed by address name at use.
		AddressOption: CSS(
			`[data-testid="address-item"]`,
			`.address-item`,
			`li[class*="address"]`,
			`label`,
		).WithTimeout(short),

		SearchInput: CSS(
			`[data-testid="search-input"]`,
			`input[placeholder*="ara"]`,
			`input[placeholder*="Ara"]`,
			`.search-input`,
			`input[type="search"]`,
		),
		VendorCards: CSS(
			`[data-testid="restaurant-card"]`,
			`.restaurant-card`,
			`.vendor-card`,
			`.restaurant-item`,
			`[data-testid*="restaurant"]`,
			`[class*="restaurant"]`,
			`[data-testid*="vendor"]`,
			`[class*="vendor"]`,
			`a[href*="restaurant"]`,
			`a[href*="restoran"]`,
			`a[href*="vendor"]`,
			`a[href*="menu"]`,
			`.search-result a`,
			`.result-item a`,
			`.vendor-link`,
			`[data-testid*="result"] a`,
			`.listing-item a`,
			`[class*="result"] a`,
			`h3 a`,
			`h2 a`,
		).WithTimeout(time.Second),
		VendorReady: CSS(
			`[data-testid="restaurant-name"]`,
			`[data-testid="product-item"]`,
			`.restaurant-name`,
			`.product-item`,
			`.menu-item`,
		),

		ProductItems: CSS(
			`[data-testid="product-item"]`,
			`.product-item`,
			`.menu-item`,
			`.food-item`,
			`[data-testid="menu-item"]`,
			`.product-card`,
			`.item-card`,
		).WithTimeout(time.Second),
		VendorName: CSS(
			`[data-testid="restaurant-name"]`,
			`.restaurant-name`,
			`.vendor-name`,
			`h1`,
			`.restaurant-title`,
		).WithTimeout(time.Second),
		ProductName: CSS(
			`[data-testid="product-name"]`,
			`.product-name`,
			`.item-name`,
			`.food-name`,
			`h3`,
			`h4`,
		).WithTimeout(500*time.Millisecond),
		ProductPrice: CSS(
			`[data-testid="product-price"]`,
			`.product-price`,
			`.item-price`,
			`.price`,
			`.price-text`,
			`[class*="price"]`,
		).WithTimeout(500*time.Millisecond),

		AddToCart: append(CSS(
			`[data-testid="add-to-cart"]`,
			`[data-testid*="add-to-cart"]`,
			`.add-to-cart`,
		), Text("button", "Sepete Ekle"), Text("button", "Ekle"), CSS(`[data-testid*="add"]`)[0]),
		Cart: CSS(
			`[data-testid="cart"]`,
			`[data-testid="basket"]`,
			`.cart`,
			`.basket`,
			`a[href*="sepet"]`,
		),
		Checkout: append(CSS(
			`[data-testid="checkout"]`,
			`.checkout-button`,
		), Text("button", "Ödeme"), Text("button", "Siparişi Onayla")),
	}
}

// lists maps configuration keys to the catalog's lists
func (c *Catalog) lists() map[string]*Candidates {
	return map[string]*Candidates{
		"cookie_accept":         &c.CookieAccept,
		"cookie_close":          &c.CookieClose,
		"login_open":            &c.LoginOpen,
		"email_input":           &c.EmailInput,
		"password_input":        &c.PasswordInput,
		"login_continue":        &c.LoginContinue,
		"login_submit":          &c.LoginSubmit,
		"secondary_auth_input":  &c.SecondaryAuthInput,
		"secondary_auth_verify": &c.SecondaryAuthVerify,
		"login_error":           &c.LoginError,
		"logged_in":             &c.LoggedIn,
		"address_open":          &c.AddressOpen,
		"address_option":        &c.AddressOption,
		"search_input":          &c.SearchInput,
		"vendor_cards":          &c.VendorCards,
		"vendor_ready":          &c.VendorReady,
		"product_items":         &c.ProductItems,
		"vendor_name":           &c.VendorName,
		"product_name":          &c.ProductName,
		"product_price":         &c.ProductPrice,
		"add_to_cart":           &c.AddToCart,
		"cart":                  &c.Cart,
		"checkout":              &c.Checkout,
	}
}

// Keys returns the configuration keys LoadCatalog understands, sorted
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.lists()))
	for k := range c.lists() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadCatalog returns the default catalog with the lists found in the file
// at path replacing their defaults. Any format viper reads is accepted. An
// empty path returns the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("read selectors file %s", path), err)
	}

	var overrides map[string]Candidates
	if err := v.Unmarshal(&overrides); err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("decode selectors file %s", path), err)
	}

	lists := catalog.lists()
	for key, cands := range overrides {
		dst, ok := lists[strings.ToLower(key)]
		if !ok {
			return nil, errors.NewConfiguration(fmt.Sprintf("unknown selector list %q (known: %s)", key, strings.Join(catalog.Keys(), ", ")), nil)
		}
		for i, cand := range cands {
			if strings.TrimSpace(cand.CSS) == "" {
				return nil, errors.NewConfiguration(fmt.Sprintf("selector list %q entry %d has no css", key, i), nil)
			}
		}
		*dst = cands
	}
	return catalog, nil
}
