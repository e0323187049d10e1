package validation

const (
	MaxShortTextLength = 128
	MaxStoryBytes      = 500

	DefaultRequestBodyLimit = 16 * 1024 // 16 KB

	AddressField   = "address"
	SignatureField = "signature"
	StarField      = "star"
	RAField        = "ra"
	DecField       = "dec"
	MagField       = "mag"
	CenField       = "cen"
	StoryField     = "story"

	ClientIPKey = "clientIP"
)

var InjectionPatterns = []string{
	"${{", "{{", "}}", "${", "#{", "{%", "%}", "{{{", // templates/SSTI
	"%0a", "%0d", "%0a%0d", "%00", "%27", "%22", "%3c", "%3e", // encoded attacks (decode first)
	"${jndi:", "ldap://", "ldaps://", // JNDI/ldap
	"eval(", "exec(", "system(", "popen(", // dangerous funcs
	"<script", "javascript:",
}
