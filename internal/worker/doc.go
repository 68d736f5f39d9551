// Package worker выполняет jobs доставки напоминаний.
//
// # Обзор
//
// Worker — stateless компонент системы Ringer, который выполняет jobs,
// поставленные dispatcher-ом и sweep-ом. Worker отвечает за:
//
//   - Получение jobs из очереди RabbitMQ jobs.ready (event-driven)
//   - Генерацию аудио-артефактов (speech.generate)
//   - Звонки получателям и фиксацию доставки (call.deliver)
//   - Retry внешних вызовов с exponential backoff
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди jobs.ready. Ровно-один-раз для финальной
// доставки обеспечивает CAS-переход delivered=false→true в хранилище,
// а не единственность воркера.
//
// # Обработка call.deliver
//
//  1. Загрузка напоминания, свежий снимок состояния (CheckPending)
//  2. Уже доставлено → SKIPPED_ALREADY_DELIVERED, без побочных эффектов
//  3. Время в хранилище не совпадает с захваченным в job →
//     SKIPPED_STALE (напоминание перенесли после постановки)
//  4. Звонок с retry — вне блокировок
//  5. Финальный job: TryMarkDelivered; проигранная гонка →
//     SKIPPED_RACE_LOST; выигранная → удаление артефакта и DELIVERED
//
// # Обработка speech.generate
//
// Синтез текста напоминания и запись WAV в blob store. Провал после
// retry не блокирует доставку: job завершается DEGRADED_NO_ARTIFACT,
// звонок пойдёт без аудио.
//
// # Retry
//
// Retry выполняется в процессе (in-process), а не через requeue в RabbitMQ.
// Это даёт точный контроль над backoff и подсчётом попыток.
// delay = InitialDelay * 2^(attempt-2), с потолком MaxDelay.
//
// Исчерпание retry звонка — единственный случай, когда job завершается
// ошибкой и уходит в DLQ; напоминание остаётся pending, и sweep
// предложит его снова.
package worker
