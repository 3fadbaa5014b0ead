package shipping

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveZone(t *testing.T) {
	r := NewDefaultResolver()

	cases := []struct {
		country, city string
		want          string
	}{
		{"KE", "Nairobi", ZoneNairobiMetro},
		{" kenya ", "  NAIROBI ", ZoneNairobiMetro},
		{"KEN", "thika", ZoneNairobiMetro},
		{"KE", "Mombasa", ZoneMajorTowns},
		{"Kenya", "Garissa", ZoneKenyaOther},
		{"KE", "", ZoneKenyaOther},
		{"UG", "Kampala", ZoneEastAfrica},
		{"Tanzania", "", ZoneEastAfrica},
		{"UG", "Nairobi", ZoneEastAfrica},
		{"FR", "Paris", ZoneRestOfWorld},
		{"", "", ZoneRestOfWorld},
	}
	for _, tc := range cases {
		got := r.ResolveZone(tc.country, tc.city)
		require.Equal(t, tc.want, got.ID, "country=%q city=%q", tc.country, tc.city)
	}
}

func TestResolveZoneIsDeterministic(t *testing.T) {
	a := NewDefaultResolver()
	b := NewDefaultResolver()
	for i := 0; i < 5; i++ {
		require.Equal(t, a.ResolveZone("ke", "Kisumu").ID, b.ResolveZone("KE", "kisumu").ID)
	}
}

func TestNewResolverRejectsBadTables(t *testing.T) {
	rate := []Rate{{Provider: "p", Service: "s", BaseCents: 1}}

	_, err := NewResolver(Zone{ID: "A", Countries: []string{"KE"}, Rates: rate})
	require.ErrorContains(t, err, "fallback")

	_, err = NewResolver(Zone{ID: "A", Rates: rate}, Zone{ID: "B", Rates: rate})
	require.ErrorContains(t, err, "multiple fallback")

	_, err = NewResolver(Zone{ID: "A", Rates: rate}, Zone{ID: "A", Countries: []string{"KE"}, Rates: rate})
	require.ErrorContains(t, err, "duplicate")

	_, err = NewResolver(Zone{ID: "A"})
	require.ErrorContains(t, err, "no rates")
}

func TestCodAndFreeShippingEligibility(t *testing.T) {
	zone := Zone{CODSupported: true, CODMaxValueCents: 1000, FreeShippingThresholdCents: 500, MaxFreeWeightGrams: 2000}

	require.True(t, IsCodAvailable(1000, zone))
	require.False(t, IsCodAvailable(1001, zone))
	require.False(t, IsCodAvailable(1, Zone{CODMaxValueCents: 1000}))

	require.True(t, IsFreeShippingAvailable(500, 2000, zone))
	require.False(t, IsFreeShippingAvailable(499, 100, zone))
	require.False(t, IsFreeShippingAvailable(500, 2001, zone))
	require.False(t, IsFreeShippingAvailable(1_000_000, 0, Zone{}))
}
