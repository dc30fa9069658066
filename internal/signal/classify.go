// Package signal flags methods that touch security relevant behavior:
// string constants that look like URLs, keys or credentials, and calls
// into JDK APIs for cryptography, networking, reflection, process
// spawning and native code.
package signal

import (
	"math"
	"regexp"
	"strings"
)

// Categories.
const (
	CatURL        = "url"
	CatHost       = "host"
	CatEncryption = "encryption"
	CatAuth       = "auth"
	CatNet        = "net"
	CatFile       = "file"
	CatBase64Key  = "base64"
	CatReflection = "reflection"
	CatProcess    = "process"
	CatNative     = "native"
	CatClassLoad  = "classload"
	CatSerialize  = "serialize"
)

// Severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

var (
	reURL       = regexp.MustCompile(`(?i)(https?|wss?|ftp|jdbc:[a-z]+|ldap)://`)
	reIPLiteral = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	reBase64    = regexp.MustCompile(`^[A-Za-z0-9+/=]{16,}$`)

	// Matched as substrings of the normalized value.
	cryptoKeywords = []string{
		"encrypt", "decrypt", "cipher", "keystore", "truststore",
		"pbkdf", "bcrypt", "scrypt", "signature", "digest",
		"hmacsha", "chacha", "blowfish", "secretkey", "keyspec",
	}

	// Short names need word boundaries: "rsa" appears in "Traversal" and
	// "des" in "nodes".
	reCryptoShort = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(aes|rsa|ecdsa|ecdh|hmac|sha1|sha-1|sha256|sha-256|sha512|md5|cbc|ecb|gcm|pkcs\d*|des|desede|rc4|salt|iv)([^a-zA-Z]|$)`)

	reAuth           = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(oauth|jwt|bearer|credential|passwd|apikey|api_key|api-key|authorization|authenticate)([^a-zA-Z]|$)`)
	reAuthStandalone = regexp.MustCompile(`(?i)(^|[^a-z])(password|token|secret|login)([^a-z]|$)`)

	netKeywords = []string{"socket", "proxy", "redirect", "useragent", "contenttype"}
	httpMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

	fileExtensions = []string{
		".class", ".jar", ".war", ".so", ".dll", ".dylib",
		".properties", ".xml", ".json", ".yaml", ".yml",
		".db", ".sqlite",
		".key", ".pem", ".crt", ".cer", ".p12", ".jks", ".keystore",
		".sh", ".bat",
	}
)

// apiRule maps a callee owner prefix, optionally narrowed to method names,
// to a category.
type apiRule struct {
	owner   string
	methods []string
	cat     string
}

var apiRules = []apiRule{
	{owner: "javax/crypto/", cat: CatEncryption},
	{owner: "java/security/", cat: CatEncryption},
	{owner: "java/net/URLClassLoader", cat: CatClassLoad},
	{owner: "javax/net/ssl/", cat: CatNet},
	{owner: "java/net/", cat: CatNet},
	{owner: "java/nio/channels/SocketChannel", cat: CatNet},
	{owner: "java/lang/reflect/", cat: CatReflection},
	{owner: "java/lang/invoke/MethodHandles$Lookup", methods: []string{"defineClass", "defineHiddenClass"}, cat: CatClassLoad},
	{owner: "java/lang/invoke/MethodHandles", cat: CatReflection},
	{owner: "java/lang/Class", methods: []string{"forName", "getMethod", "getDeclaredMethod", "getField", "getDeclaredField", "newInstance", "getConstructor", "getDeclaredConstructor"}, cat: CatReflection},
	{owner: "java/lang/Runtime", methods: []string{"exec"}, cat: CatProcess},
	{owner: "java/lang/ProcessBuilder", cat: CatProcess},
	{owner: "java/lang/System", methods: []string{"load", "loadLibrary"}, cat: CatNative},
	{owner: "java/lang/Runtime", methods: []string{"load", "loadLibrary"}, cat: CatNative},
	{owner: "java/lang/ClassLoader", methods: []string{"defineClass", "loadClass"}, cat: CatClassLoad},
	{owner: "java/io/ObjectInputStream", cat: CatSerialize},
	{owner: "java/io/ObjectOutputStream", cat: CatSerialize},
	{owner: "java/io/File", cat: CatFile},
	{owner: "java/nio/file/Files", cat: CatFile},
}

// ClassifyString returns the categories a string constant falls into, or
// nil if it carries no signal.
func ClassifyString(value string) []string {
	if len(value) < 2 {
		return nil
	}

	var cats []string
	lower := strings.ToLower(value)

	if reURL.MatchString(value) {
		cats = append(cats, CatURL)
	}
	if reIPLiteral.MatchString(value) {
		cats = append(cats, CatHost)
	}
	if containsKeyword(value, cryptoKeywords) || reCryptoShort.MatchString(value) {
		cats = append(cats, CatEncryption)
	}
	if reAuth.MatchString(value) || reAuthStandalone.MatchString(value) {
		cats = append(cats, CatAuth)
	}

	for _, m := range httpMethods {
		if value == m {
			cats = append(cats, CatNet)
			break
		}
	}
	if !containsCat(cats, CatNet) && containsKeyword(value, netKeywords) {
		cats = append(cats, CatNet)
	}

	for _, ext := range fileExtensions {
		if strings.HasSuffix(lower, ext) {
			cats = append(cats, CatFile)
			break
		}
	}

	// High entropy standalone tokens. Identifiers share the alphabet, so
	// camelCase and internal names are excluded.
	trimmed := strings.TrimSpace(value)
	if reBase64.MatchString(trimmed) && entropy(trimmed) > 3.5 && !isCamelCase(trimmed) {
		cats = append(cats, CatBase64Key)
	}
	return cats
}

// ClassifyCall returns the category of a call to owner.name, or "".
func ClassifyCall(owner, name string) string {
	for _, r := range apiRules {
		if !ownerMatches(owner, r.owner) {
			continue
		}
		if len(r.methods) == 0 || containsCat(r.methods, name) {
			return r.cat
		}
	}
	return ""
}

// ownerMatches reports whether owner is in package rule (ending in '/'),
// or is the class rule or one of its nested classes.
func ownerMatches(owner, rule string) bool {
	if strings.HasSuffix(rule, "/") {
		return strings.HasPrefix(owner, rule)
	}
	return owner == rule || strings.HasPrefix(owner, rule+"$")
}

// CategorySeverity ranks a single category.
func CategorySeverity(cat string) string {
	switch cat {
	case CatProcess, CatNative, CatClassLoad, CatSerialize, CatBase64Key:
		return SeverityHigh
	case CatEncryption, CatAuth, CatReflection, CatURL, CatHost:
		return SeverityMedium
	}
	return SeverityLow
}

// MaxSeverity returns the highest severity among categories.
func MaxSeverity(categories []string) string {
	best := SeverityLow
	for _, c := range categories {
		switch CategorySeverity(c) {
		case SeverityHigh:
			return SeverityHigh
		case SeverityMedium:
			best = SeverityMedium
		}
	}
	return best
}

func isCamelCase(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] >= 'a' && s[i-1] <= 'z' && s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}

// normalizeForMatch lowercases s and strips _, -, space and dot, so
// "Secret_Key" and "secretKey" both match "secretkey".
func normalizeForMatch(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c != '_' && c != '-' && c != ' ' && c != '.' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func containsKeyword(value string, keywords []string) bool {
	norm := normalizeForMatch(value)
	for _, kw := range keywords {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}

func containsCat(cats []string, cat string) bool {
	for _, c := range cats {
		if c == cat {
			return true
		}
	}
	return false
}

// entropy is the Shannon entropy of s in bits per byte.
func entropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	n := float64(len(s))
	var ent float64
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		ent -= p * math.Log2(p)
	}
	return ent
}
