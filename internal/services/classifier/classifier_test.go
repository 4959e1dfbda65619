package classifier

import "testing"

func TestClassify(t *testing.T) {
	c := New(nil)

	tests := []struct {
		text string
		want Category
	}{
		{"eu te amo luisa", Affection},
		{"amo vc", Affection},
		{"vsf", Insult},
		{"VAI SE FODER", Insult},
		{"qual a boa hoje?", Plan},
		{"bora sair?", Plan},
		{"como vc ta?", Wellbeing},
		{"tudo bem?", Wellbeing},
		{"o que vc ta fazendo", Activity},
		{"oi gente", Greeting},
		{"bom dia", Greeting},
		{"to com fome", Food},
		{"bora jogar valorant", Gaming},
		{"viu o anime novo", Entertainment},
		{"isso e verdade?", Question},
		{"que legal", General},
		{"", General},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := c.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifyOrderIsFixed(t *testing.T) {
	c := New(nil)

	// affection wins over insult, insult over greeting, greeting over question
	if got := c.Classify("te amo sua idiota"); got != Affection {
		t.Errorf("got %q, want affection", got)
	}
	if got := c.Classify("oi idiota"); got != Insult {
		t.Errorf("got %q, want insult", got)
	}
	if got := c.Classify("oi, bora comer pizza?"); got != Greeting {
		t.Errorf("got %q, want greeting", got)
	}
}

func TestCustomInsults(t *testing.T) {
	c := New([]string{"chato", "a.b"})

	if got := c.Classify("vc e chato"); got != Insult {
		t.Errorf("got %q, want insult", got)
	}
	if got := c.Classify("vsf"); got == Insult {
		t.Error("custom list replaces the defaults")
	}
	// metacharacters are literal
	if got := c.Classify("axb"); got == Insult {
		t.Error("insult terms must be matched literally")
	}
}

func TestIsQuickReply(t *testing.T) {
	for _, c := range []Category{Affection, Insult} {
		if !IsQuickReply(c) {
			t.Errorf("%q should be a quick reply category", c)
		}
	}
	if IsQuickReply(Greeting) || IsQuickReply(General) {
		t.Error("only affection and insult are quick replies")
	}
}
