package als

// templateSetVersion participates in the variant key derivation so that
// editing the template set changes the derived hashes auditably instead of
// silently reusing old variant indices against new text.
const templateSetVersion = "v1"

// template holds the phrasing variants for one country. Each variant is a
// format string receiving the BCP-47 locale tag. Variants are civic,
// time-free phrasings: nothing in a rendered block may depend on the clock.
type template struct {
	ID       string
	Country  string
	Variants []string
}

var templates = map[string]template{
	"US": {
		ID:      "als_us",
		Country: "United States",
		Variants: []string{
			"Ambient context: the user is located in the United States (locale %s). Prefer sources, spellings, units, and conventions relevant to the United States.",
			"Location note: this request originates from the United States (locale %s). Where regional differences matter, use United States conventions and sources.",
			"Context: assume a reader based in the United States using locale %s. Regional references, units, and examples should match that setting.",
		},
	},
	"GB": {
		ID:      "als_gb",
		Country: "United Kingdom",
		Variants: []string{
			"Ambient context: the user is located in the United Kingdom (locale %s). Prefer sources, spellings, units, and conventions relevant to the United Kingdom.",
			"Location note: this request originates from the United Kingdom (locale %s). Where regional differences matter, use British conventions and sources.",
			"Context: assume a reader based in the United Kingdom using locale %s. Regional references, units, and examples should match that setting.",
		},
	},
	"DE": {
		ID:      "als_de",
		Country: "Germany",
		Variants: []string{
			"Kontext: Die Anfrage stammt aus Deutschland (Gebietsschema %s). Bevorzugen Sie Quellen, Einheiten und Konventionen, die für Deutschland relevant sind.",
			"Standorthinweis: Der Nutzer befindet sich in Deutschland (Gebietsschema %s). Wo regionale Unterschiede eine Rolle spielen, gelten deutsche Konventionen.",
			"Hinweis: Gehen Sie von einer Leserschaft in Deutschland aus (Gebietsschema %s). Regionale Bezüge und Beispiele sollten dazu passen.",
		},
	},
	"FR": {
		ID:      "als_fr",
		Country: "France",
		Variants: []string{
			"Contexte : la demande provient de France (paramètres régionaux %s). Privilégiez les sources, unités et conventions pertinentes pour la France.",
			"Indication de localisation : l'utilisateur se trouve en France (paramètres régionaux %s). Appliquez les conventions françaises lorsque cela compte.",
			"Remarque : supposez un lecteur situé en France utilisant %s. Les références régionales et les exemples doivent correspondre à ce cadre.",
		},
	},
	"IT": {
		ID:      "als_it",
		Country: "Italy",
		Variants: []string{
			"Contesto: la richiesta proviene dall'Italia (impostazioni locali %s). Preferire fonti, unità e convenzioni rilevanti per l'Italia.",
			"Nota sulla posizione: l'utente si trova in Italia (impostazioni locali %s). Dove contano le differenze regionali, usare convenzioni italiane.",
			"Avviso: presumere un lettore in Italia con impostazioni %s. Riferimenti regionali ed esempi devono rispecchiare questo contesto.",
		},
	},
	"ES": {
		ID:      "als_es",
		Country: "Spain",
		Variants: []string{
			"Contexto: la solicitud procede de España (configuración regional %s). Prefiera fuentes, unidades y convenciones relevantes para España.",
			"Nota de ubicación: el usuario se encuentra en España (configuración regional %s). Aplique convenciones españolas cuando importe.",
			"Aviso: suponga un lector en España con configuración %s. Las referencias regionales y los ejemplos deben ajustarse a ese entorno.",
		},
	},
	"CH": {
		ID:      "als_ch",
		Country: "Switzerland",
		Variants: []string{
			"Ambient context: the user is located in Switzerland (locale %s). Prefer sources, units, and conventions relevant to Switzerland.",
			"Kontext: Die Anfrage stammt aus der Schweiz (Gebietsschema %s). Bevorzugen Sie Quellen und Konventionen, die für die Schweiz relevant sind.",
			"Location note: this request originates from Switzerland (locale %s). Where regional differences matter, use Swiss conventions and sources.",
		},
	},
	"NL": {
		ID:      "als_nl",
		Country: "Netherlands",
		Variants: []string{
			"Context: het verzoek komt uit Nederland (landinstelling %s). Geef de voorkeur aan bronnen, eenheden en conventies die relevant zijn voor Nederland.",
			"Locatienotitie: de gebruiker bevindt zich in Nederland (landinstelling %s). Gebruik Nederlandse conventies waar regionale verschillen ertoe doen.",
		},
	},
	"AE": {
		ID:      "als_ae",
		Country: "United Arab Emirates",
		Variants: []string{
			"Ambient context: the user is located in the United Arab Emirates (locale %s). Prefer sources, units, and conventions relevant to the UAE.",
			"Location note: this request originates from the United Arab Emirates (locale %s). Where regional differences matter, use UAE conventions and sources.",
		},
	},
	"SG": {
		ID:      "als_sg",
		Country: "Singapore",
		Variants: []string{
			"Ambient context: the user is located in Singapore (locale %s). Prefer sources, units, and conventions relevant to Singapore.",
			"Location note: this request originates from Singapore (locale %s). Where regional differences matter, use Singaporean conventions and sources.",
		},
	},
	"JP": {
		ID:      "als_jp",
		Country: "Japan",
		Variants: []string{
			"コンテキスト: このリクエストは日本からのものです（ロケール %s）。日本に関連する情報源、単位、慣習を優先してください。",
			"位置情報: ユーザーは日本にいます（ロケール %s）。地域差が重要な場合は日本の慣習に従ってください。",
		},
	},
	"AU": {
		ID:      "als_au",
		Country: "Australia",
		Variants: []string{
			"Ambient context: the user is located in Australia (locale %s). Prefer sources, spellings, units, and conventions relevant to Australia.",
			"Location note: this request originates from Australia (locale %s). Where regional differences matter, use Australian conventions and sources.",
		},
	},
	"CA": {
		ID:      "als_ca",
		Country: "Canada",
		Variants: []string{
			"Ambient context: the user is located in Canada (locale %s). Prefer sources, spellings, units, and conventions relevant to Canada.",
			"Location note: this request originates from Canada (locale %s). Where regional differences matter, use Canadian conventions and sources.",
		},
	},
	"BR": {
		ID:      "als_br",
		Country: "Brazil",
		Variants: []string{
			"Contexto: a solicitação vem do Brasil (localidade %s). Prefira fontes, unidades e convenções relevantes para o Brasil.",
			"Nota de localização: o usuário está no Brasil (localidade %s). Use convenções brasileiras onde as diferenças regionais importam.",
		},
	},
	"IN": {
		ID:      "als_in",
		Country: "India",
		Variants: []string{
			"Ambient context: the user is located in India (locale %s). Prefer sources, units, and conventions relevant to India.",
			"Location note: this request originates from India (locale %s). Where regional differences matter, use Indian conventions and sources.",
		},
	},
}

// SupportedCountries lists the country codes the builder can render.
func SupportedCountries() []string {
	out := make([]string, 0, len(templates))
	for code := range templates {
		out = append(out, code)
	}
	return out
}
