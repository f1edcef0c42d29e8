package maplink

import (
	"courier-route-service/internal/domain"
	"errors"
	"testing"
)

func TestYandexLink(t *testing.T) {
	got, err := NewYandex().Link([]domain.Coordinates{
		{Lon: 30.3158, Lat: 59.9391},
		{Lon: 30.3609, Lat: 59.9311},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "https://yandex.ru/maps/?mode=routes&rtext=59.939100%2C30.315800~59.931100%2C30.360900&rtt=auto"
	if got != want {
		t.Fatalf("link = %q, want %q", got, want)
	}
}

func TestYandexLinkEmpty(t *testing.T) {
	if _, err := NewYandex().Link(nil); !errors.Is(err, domain.ErrNoStops) {
		t.Fatalf("err = %v, want ErrNoStops", err)
	}
}
