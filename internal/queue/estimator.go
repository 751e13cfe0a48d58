package queue

import "math"

// DefaultConsultMinutes — средняя длительность приёма, пока по врачу
// нет собственной истории.
const DefaultConsultMinutes = 15.0

// emaAlpha — вес последнего приёма в скользящем среднем.
const emaAlpha = 0.3

// estimateWaits проставляет EstimatedWaitMinutes всем записям упорядоченной
// живой очереди: количество записей строго впереди, умноженное на среднюю
// длительность приёма. Чистая синхронная функция, вызывается менеджером
// после каждого пересчёта позиций.
func estimateWaits(entries []*Entry, avgMinutes float64) {
	for i, e := range entries {
		e.EstimatedWaitMinutes = int(math.Round(float64(i) * avgMinutes))
	}
}

// nextAverage обновляет скользящее среднее длительности приёма
// экспоненциальным сглаживанием.
func nextAverage(avg, lastMinutes float64) float64 {
	if lastMinutes < 0 {
		return avg
	}
	return emaAlpha*lastMinutes + (1-emaAlpha)*avg
}
