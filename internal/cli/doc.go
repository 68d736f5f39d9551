// Package cli реализует инструмент командной строки Ringer.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Ringer API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления напоминаниями и просмотра
// журнала исходов доставки.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Ringer API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	reminders, err := client.ListReminders(cli.ListRemindersOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: ringer reminder list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - reminder: list, create, show, update, attempts, deliver
//
// Группа создаётся через фабричную функцию (NewReminderCmd),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
