package address_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"real-estate-cms/internal/address"
	"real-estate-cms/internal/models"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		addr string
		mode models.AddressVisibility
		want string
	}{
		{"public returns address", "서울특별시 강남구 역삼동 123-4", models.AddressPublic, "서울특별시 강남구 역삼동 123-4"},
		{"missing mode is public", "서울특별시 강남구 역삼동 123-4", "", "서울특별시 강남구 역삼동 123-4"},
		{"unknown mode is public", "서울특별시 강남구 역삼동 123-4", models.AddressVisibility("partial"), "서울특별시 강남구 역삼동 123-4"},
		{"private hides address", "서울특별시 강남구 역삼동 123-4", models.AddressPrivate, address.Private},
		{"empty address", "", models.AddressPublic, address.Unavailable},
		{"blank address", "   ", models.AddressExclude, address.Unavailable},
		{"empty address wins over private", "", models.AddressPrivate, address.Unavailable},
		{"exclude stops at eup", "경상북도 칠곡군 왜관읍 중앙로 123", models.AddressExclude, "경상북도 칠곡군 왜관읍"},
		{"exclude stops at myeon", "충청남도 공주시 우성면 방문리 12", models.AddressExclude, "충청남도 공주시 우성면"},
		{"exclude keeps only the first division", "전라남도 해남군 송지면 송호리 동현동 1", models.AddressExclude, "전라남도 해남군 송지면"},
		{"exclude stops at dong", "대구광역시 수성구 범어동 45-6 101호", models.AddressExclude, "대구광역시 수성구 범어동"},
		{"exclude appends legal dong alias", "대구 동구 효목동(효목1동)", models.AddressExclude, "대구 동구 효목동 (효목1동)"},
		{"exclude appends spaced alias", "대구 동구 효목동 12-3 (효목1동)", models.AddressExclude, "대구 동구 효목동 (효목1동)"},
		{"exclude does not duplicate alias", "서울 강남구 (역삼동) 역삼동 (역삼동)", models.AddressExclude, "서울 강남구 (역삼동) 역삼동"},
		{"exclude single dong token", "역삼동", models.AddressExclude, "역삼동"},
		{"exclude single token without suffix", "서울", models.AddressExclude, "서울"},
		{"exclude two tokens without suffix", "서울 강남", models.AddressExclude, "서울 강남"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, address.Redact(tt.addr, tt.mode))
		})
	}
}

// Without an eup/myeon/dong segment the exclude mode keeps only the first two
// tokens, even though a matched address may keep many more. This is the
// documented behavior, not an oversight.
func TestRedactExcludeFallbackKeepsTwoTokens(t *testing.T) {
	got := address.Redact("서울특별시 강남구 테헤란로 427 위워크타워", models.AddressExclude)
	assert.Equal(t, "서울특별시 강남구", got)

	long := address.Redact("경기도 성남시 분당구 정자일로 95 네이버 정자동", models.AddressExclude)
	assert.Equal(t, "경기도 성남시 분당구 정자일로 95 네이버 정자동", long)
}

func TestRedactPublicIsIdentity(t *testing.T) {
	for _, addr := range []string{"부산 해운대구 우동 1", "a", "대구 동구 효목동(효목1동)"} {
		assert.Equal(t, addr, address.Redact(addr, models.AddressPublic))
		assert.Equal(t, addr, address.Redact(addr, ""))
		assert.Equal(t, address.Private, address.Redact(addr, models.AddressPrivate))
	}
}
