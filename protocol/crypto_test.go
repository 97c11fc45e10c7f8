package protocol

import "testing"

func testKey() []byte {
	return []byte("0123456789abcdef")
}

func testIV() []byte {
	return []byte("fedcba9876543210")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("0123456789abcdef0123456789abcdef") // 32 bytes, two blocks
	ciphertext, err := encrypt(testKey(), testIV(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(ciphertext) != len(plaintext) {
		t.Fatalf("ciphertext length = %d, want %d", len(ciphertext), len(plaintext))
	}
	got, err := decrypt(testKey(), testIV(), ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("decrypt(encrypt(x)) = %q, want %q", got, plaintext)
	}
}

func TestDecryptWithWrongKeyProducesDifferentPlaintext(t *testing.T) {
	plaintext := []byte("0123456789abcdef")
	ciphertext, err := encrypt(testKey(), testIV(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	wrongKey := []byte("ffffffffffffffff")
	got, err := decrypt(wrongKey, testIV(), ciphertext)
	if err != nil {
		t.Fatalf("decrypt with wrong key should not itself error: %v", err)
	}
	if string(got) == string(plaintext) {
		t.Fatal("decrypting with the wrong key unexpectedly recovered the original plaintext")
	}
}

func TestCryptoLengthValidation(t *testing.T) {
	key16 := testKey()
	iv16 := testIV()

	cases := []struct {
		name string
		key  []byte
		iv   []byte
		data []byte
	}{
		{"short key", key16[:15], iv16, make([]byte, 16)},
		{"long key", append(append([]byte{}, key16...), 'x'), iv16, make([]byte, 16)},
		{"short iv", key16, iv16[:15], make([]byte, 16)},
		{"empty data", key16, iv16, nil},
		{"unaligned data", key16, iv16, make([]byte, 17)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := encrypt(tc.key, tc.iv, tc.data); err == nil {
				t.Fatal("expected encrypt to reject invalid lengths")
			}
			if _, err := decrypt(tc.key, tc.iv, tc.data); err == nil {
				t.Fatal("expected decrypt to reject invalid lengths")
			}
		})
	}
}

func TestRandomBytesLengthAndVariance(t *testing.T) {
	a, err := randomBytes(32)
	if err != nil {
		t.Fatalf("randomBytes: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("len(a) = %d, want 32", len(a))
	}
	b, err := randomBytes(32)
	if err != nil {
		t.Fatalf("randomBytes: %v", err)
	}
	if string(a) == string(b) {
		t.Fatal("two independent randomBytes calls produced identical output")
	}
}

func TestRandomBytesZeroLength(t *testing.T) {
	b, err := randomBytes(0)
	if err != nil {
		t.Fatalf("randomBytes(0): %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("len(b) = %d, want 0", len(b))
	}
}
