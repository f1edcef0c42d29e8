package maplink

import (
	"courier-route-service/internal/domain"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const yandexMapsURL = "https://yandex.ru/maps/"

// Yandex builds Yandex Maps driving-route links ("rtext=lat,lon~lat,lon~...").
type Yandex struct {
	BaseURL string
}

func NewYandex() *Yandex { return &Yandex{BaseURL: yandexMapsURL} }

func (y *Yandex) Link(route []domain.Coordinates) (string, error) {
	if len(route) == 0 {
		return "", fmt.Errorf("map link: %w", domain.ErrNoStops)
	}

	points := make([]string, 0, len(route))
	for _, c := range route {
		points = append(points, strconv.FormatFloat(c.Lat, 'f', 6, 64)+","+strconv.FormatFloat(c.Lon, 'f', 6, 64))
	}

	q := url.Values{}
	q.Set("mode", "routes")
	q.Set("rtt", "auto")
	q.Set("rtext", strings.Join(points, "~"))

	return y.BaseURL + "?" + q.Encode(), nil
}
