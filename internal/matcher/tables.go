package matcher

import "regexp"

// Default returns the tables tuned for Turkish food storefronts
func Default() Rules {
	return Rules{
		Synonyms: map[string]Synonym{
			"margarita": {
				Alternates: []string{"margarita", "margherita", "margerita", "margharita", "margaritha"},
				Category:   "pizza",
			},
			"pepperoni": {
				Alternates: []string{"pepperoni", "peperoni", "pepperonili"},
				Category:   "pizza",
			},
			"karışık": {
				Alternates: []string{"karışık", "karisik", "mix", "mixed"},
				Category:   "pizza",
			},
			"döner": {
				Alternates: []string{"döner", "doner", "döner kebap"},
				Category:   "döner",
			},
			"iskender": {
				Alternates: []string{"iskender", "iskenderun", "iskender kebap"},
				Category:   "kebap",
			},
			"lahmacun": {
				Alternates: []string{"lahmacun", "lahmacunu"},
				Category:   "lahmacun",
			},
		},
		Categories: []string{
			"pizza", "pide", "lahmacun", "burger", "hamburger", "döner", "kebap", "kebab",
			"dürüm", "makarna", "pasta", "salata", "salad", "çorba", "soup", "tost",
			"sandviç", "sandwich", "wrap", "köfte", "tavuk", "chicken", "sushi", "börek",
			"mantı", "kumpir", "waffle", "tatlı", "dessert",
		},
		Sizes: []string{
			"small", "medium", "large", "küçük", "orta", "büyük", "mini", "maxi", "mega",
			"tek kişilik", "duble", "porsiyon", "1.5 porsiyon",
		},
		SizePattern: regexp.MustCompile(`\b\d+([.,]\d+)?\s*(cm|gr|g|kg|ml|lt|kisilik|dilim|adet)\b`),
		Exclusions: []string{
			"combo", "menü", "menu", "set", "bundle", "kampanya", "paket", "box",
			"ikili", "üçlü", "2'li", "3'lü", "fırsat",
		},
	}
}
