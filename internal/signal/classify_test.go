package signal

import "testing"

func TestClassifyURL(t *testing.T) {
	cats := ClassifyString("https://api.example.com/oauth/accessToken")
	if !containsCat(cats, CatURL) {
		t.Errorf("expected url category, got %v", cats)
	}
	if !containsCat(cats, CatAuth) {
		t.Errorf("expected auth category for oauth, got %v", cats)
	}
	if cats := ClassifyString("jdbc:mysql://db:3306/app"); !containsCat(cats, CatURL) {
		t.Errorf("expected url category for jdbc url, got %v", cats)
	}
}

func TestClassifyCrypto(t *testing.T) {
	for _, s := range []string{
		"AES/CBC/PKCS5Padding", "SHA-256", "HmacSHA256", "encrypt",
		"RSA/ECB/OAEPWithSHA-1AndMGF1Padding", "PBKDF2WithHmacSHA1",
		"SecretKeySpec", "DESede", "MD5",
	} {
		if cats := ClassifyString(s); !containsCat(cats, CatEncryption) {
			t.Errorf("expected encryption category for %q, got %v", s, cats)
		}
	}
}

func TestClassifyCryptoFalsePositives(t *testing.T) {
	for _, s := range []string{
		"Traversal",
		"nodes",
		"Description",
		"getDivider",
		"java/util/ArrayList",
	} {
		if cats := ClassifyString(s); containsCat(cats, CatEncryption) {
			t.Errorf("should not be encryption: %q, got %v", s, cats)
		}
	}
}

func TestClassifyAuth(t *testing.T) {
	for _, s := range []string{"Authorization", "Bearer ", "db.password", "api_key"} {
		if cats := ClassifyString(s); !containsCat(cats, CatAuth) {
			t.Errorf("expected auth category for %q, got %v", s, cats)
		}
	}
	if cats := ClassifyString("showPasswordToggle"); containsCat(cats, CatAuth) {
		t.Errorf("camelCase identifier flagged as auth: %v", cats)
	}
}

func TestClassifyNet(t *testing.T) {
	for _, s := range []string{"POST", "http.proxyHost", "User-Agent"} {
		if cats := ClassifyString(s); !containsCat(cats, CatNet) {
			t.Errorf("expected net category for %q, got %v", s, cats)
		}
	}
	if cats := ClassifyString("post"); containsCat(cats, CatNet) {
		t.Errorf("lowercase verb flagged as net: %v", cats)
	}
}

func TestClassifyFile(t *testing.T) {
	for _, s := range []string{"plugin.jar", "application.properties", "server.p12", "libnative.so"} {
		if cats := ClassifyString(s); !containsCat(cats, CatFile) {
			t.Errorf("expected file category for %q, got %v", s, cats)
		}
	}
}

func TestClassifyBase64Key(t *testing.T) {
	if cats := ClassifyString("Q8ZT3LX9VR+2WP/0HA7KFQ=="); !containsCat(cats, CatBase64Key) {
		t.Errorf("expected base64 category, got %v", cats)
	}
	if cats := ClassifyString("aaaaaaaaaaaaaaaaaaaa"); containsCat(cats, CatBase64Key) {
		t.Errorf("low entropy string flagged as key: %v", cats)
	}
}

func TestClassifyIP(t *testing.T) {
	if cats := ClassifyString("10.0.0.12"); !containsCat(cats, CatHost) {
		t.Errorf("expected host category, got %v", cats)
	}
}

func TestClassifyMundane(t *testing.T) {
	for _, s := range []string{"", "x", "Hello, world", "count", "java/lang/Object"} {
		if cats := ClassifyString(s); len(cats) != 0 {
			t.Errorf("expected no categories for %q, got %v", s, cats)
		}
	}
}

func TestClassifyCall(t *testing.T) {
	tests := []struct {
		owner, name, want string
	}{
		{"javax/crypto/Cipher", "getInstance", CatEncryption},
		{"java/security/MessageDigest", "digest", CatEncryption},
		{"java/net/URL", "openConnection", CatNet},
		{"java/net/URLClassLoader", "<init>", CatClassLoad},
		{"javax/net/ssl/SSLContext", "init", CatNet},
		{"java/lang/reflect/Method", "invoke", CatReflection},
		{"java/lang/Class", "forName", CatReflection},
		{"java/lang/Class", "getName", ""},
		{"java/lang/ClassLoader", "loadClass", CatClassLoad},
		{"java/lang/Runtime", "exec", CatProcess},
		{"java/lang/Runtime", "loadLibrary", CatNative},
		{"java/lang/Runtime", "availableProcessors", ""},
		{"java/lang/ProcessBuilder", "start", CatProcess},
		{"java/lang/System", "loadLibrary", CatNative},
		{"java/lang/System", "currentTimeMillis", ""},
		{"java/lang/invoke/MethodHandles$Lookup", "defineClass", CatClassLoad},
		{"java/lang/invoke/MethodHandles$Lookup", "findVirtual", CatReflection},
		{"java/io/ObjectInputStream", "readObject", CatSerialize},
		{"java/io/File", "delete", CatFile},
		{"java/io/FileInputStream", "<init>", ""},
		{"java/util/ArrayList", "add", ""},
	}
	for _, tt := range tests {
		if got := ClassifyCall(tt.owner, tt.name); got != tt.want {
			t.Errorf("ClassifyCall(%s, %s) = %q, want %q", tt.owner, tt.name, got, tt.want)
		}
	}
}

func TestMaxSeverity(t *testing.T) {
	tests := []struct {
		cats []string
		want string
	}{
		{nil, SeverityLow},
		{[]string{CatFile, CatNet}, SeverityLow},
		{[]string{CatNet, CatURL}, SeverityMedium},
		{[]string{CatURL, CatProcess}, SeverityHigh},
	}
	for _, tt := range tests {
		if got := MaxSeverity(tt.cats); got != tt.want {
			t.Errorf("MaxSeverity(%v) = %q, want %q", tt.cats, got, tt.want)
		}
	}
}
