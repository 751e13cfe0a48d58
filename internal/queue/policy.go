package queue

// Less задаёт полный порядок живой очереди одного врача.
// Первичный ключ — severity по возрастанию (1 — самый срочный — впереди),
// tie-break — время приёма/прихода по возрастанию, затем идентификатор приёма,
// чтобы порядок был детерминированным при полном совпадении.
// Обе записи обязаны иметь назначенный severity: записи без триажа
// в живую очередь не допускаются.
func Less(a, b *Entry) bool {
	if *a.Severity != *b.Severity {
		return *a.Severity < *b.Severity
	}
	if !a.ScheduledAt.Equal(b.ScheduledAt) {
		return a.ScheduledAt.Before(b.ScheduledAt)
	}
	return a.ID < b.ID
}
