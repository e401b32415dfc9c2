package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestCPF(t *testing.T) {
	valid := []string{"529.982.247-25", "52998224725", "111.444.777-35", " 111 444 777 35 "}
	for _, s := range valid {
		if !CPF(s) {
			t.Fatalf("CPF(%q) = false; want true", s)
		}
	}

	for d := '0'; d <= '9'; d++ {
		s := strings.Repeat(string(d), 11)
		if CPF(s) {
			t.Fatalf("CPF(%q) = true; repeated digits must fail", s)
		}
	}

	invalid := []string{
		"529.982.247-26", // second check digit corrupted
		"529.982.247-15", // first check digit corrupted
		"5299822472",     // too short
		"529982247251",   // too long
		"",
		"abc",
	}
	for _, s := range invalid {
		if CPF(s) {
			t.Fatalf("CPF(%q) = true; want false", s)
		}
	}
}

func TestFormatCPF_Progressive(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"123":             "123",
		"1234":            "123.4",
		"123456":          "123.456",
		"1234567":         "123.456.7",
		"1234567890":      "123.456.7890",
		"52998224725":     "529.982.247-25",
		"52998224725999":  "529.982.247-25",
		"529.982.247-25":  "529.982.247-25",
		"529a982b247c25d": "529.982.247-25",
	}
	for in, want := range cases {
		if got := FormatCPF(in); got != want {
			t.Fatalf("FormatCPF(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestFormatPhone(t *testing.T) {
	cases := map[string]string{
		"11987654321":     "(11) 987654321",
		"1198765432199":   "(11) 987654321", // truncated to 11 digits first
		"(11) 98765-4321": "(11) 987654321",
		"11":              "11",
		"1":               "1",
		"119":             "(11) 9",
		"":                "",
	}
	for in, want := range cases {
		if got := FormatPhone(in); got != want {
			t.Fatalf("FormatPhone(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestPhone(t *testing.T) {
	for _, s := range []string{"(11) 987654321", "(11)987654321", "(21) 33334444"} {
		if !Phone(s) {
			t.Fatalf("Phone(%q) = false; want true", s)
		}
	}
	for _, s := range []string{"11987654321", "(01) 987654321", "(11) 187654321", "(11) 9876", ""} {
		if Phone(s) {
			t.Fatalf("Phone(%q) = true; want false", s)
		}
	}
}

func TestAge_BirthdayBoundary(t *testing.T) {
	birth := time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)
	if got := Age(birth, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)); got != 13 {
		t.Fatalf("day before birthday age = %d", got)
	}
	if got := Age(birth, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)); got != 14 {
		t.Fatalf("on birthday age = %d", got)
	}
}

func TestCheckRegistration_RuleOrder(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := Registration{Nome: "Ana", Sobrenome: "Silva", DataNascimento: "1990-03-10", Telefone: "(11) 987654321", CPF: "529.982.247-25"}
	if err := CheckRegistration(ok, now); err != nil {
		t.Fatalf("valid registration rejected: %v", err)
	}

	missing := ok
	missing.Sobrenome = " "
	if err := CheckRegistration(missing, now); err != ErrMissingFields {
		t.Fatalf("want ErrMissingFields, got %v", err)
	}

	young := ok
	young.DataNascimento = "15/06/2015"
	young.CPF = "bad" // age is checked first
	if err := CheckRegistration(young, now); err != ErrUnderage {
		t.Fatalf("want ErrUnderage, got %v", err)
	}

	badDate := ok
	badDate.DataNascimento = "yesterday"
	if err := CheckRegistration(badDate, now); err != ErrInvalidBirthDate {
		t.Fatalf("want ErrInvalidBirthDate, got %v", err)
	}

	badPhone := ok
	badPhone.Telefone = "11987654321"
	if err := CheckRegistration(badPhone, now); err != ErrInvalidPhone {
		t.Fatalf("want ErrInvalidPhone, got %v", err)
	}

	badCPF := ok
	badCPF.CPF = "529.982.247-26"
	if err := CheckRegistration(badCPF, now); err != ErrInvalidCPF {
		t.Fatalf("want ErrInvalidCPF, got %v", err)
	}
}

func TestRegister_BindingTags(t *testing.T) {
	v := validator.New()
	if err := Register(v); err != nil {
		t.Fatalf("Register: %v", err)
	}
	type dto struct {
		CPF   string `validate:"cpf"`
		Phone string `validate:"br_phone"`
	}
	if err := v.Struct(dto{CPF: "52998224725", Phone: "11987654321"}); err != nil {
		t.Fatalf("valid dto rejected: %v", err)
	}
	if err := v.Struct(dto{CPF: "11111111111", Phone: "11987654321"}); err == nil {
		t.Fatalf("invalid cpf accepted")
	}
	if err := v.Struct(dto{CPF: "52998224725", Phone: "0198"}); err == nil {
		t.Fatalf("invalid phone accepted")
	}
	if err := RegisterBindings(); err != nil {
		t.Fatalf("RegisterBindings: %v", err)
	}
}
