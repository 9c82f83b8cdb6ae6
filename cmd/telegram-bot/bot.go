package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"task-tracker/internal/logger"
	"task-tracker/internal/manager"
	"task-tracker/internal/models"
)

// sender - часть tgbotapi.BotAPI, которая нужна боту.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api         sender
	taskManager *manager.TaskManager
	allowed     map[int]bool
}

func NewBot(api sender, tm *manager.TaskManager, allowedUsers []int) *Bot {
	allowed := make(map[int]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &Bot{api: api, taskManager: tm, allowed: allowed}
}

// Start читает обновления до отмены ctx или закрытия канала.
func (b *Bot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	logger.Info(ctx, "Бот запущен и слушает сообщения...")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !b.allowed[msg.From.ID] {
		userID := 0
		if msg.From != nil {
			userID = msg.From.ID
		}
		logger.Warn(ctx, "Сообщение от пользователя не из списка", "telegramID", userID)
		b.sendMessage(ctx, msg.Chat.ID, "⛔ Доступ запрещен")
		return
	}

	logger.Info(ctx, "Получено сообщение",
		"user", msg.From.UserName,
		"text", msg.Text,
	)

	var reply string
	if msg.IsCommand() {
		reply = b.handleCommand(ctx, msg.Command(), msg.CommandArguments())
	} else {
		// Обычный текст добавляется как задача
		reply = b.addTask(ctx, msg.Text)
	}
	b.sendMessage(ctx, msg.Chat.ID, reply)
}

// handleCommand возвращает текст ответа на команду.
func (b *Bot) handleCommand(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)

	switch command {
	case "start", "help":
		return helpText
	case "add":
		if args == "" {
			return "Укажите задачу после команды: /add Купить молоко | 2 литра"
		}
		return b.addTask(ctx, args)
	case "list":
		return b.listTasks(ctx, args)
	case "task":
		return b.showTask(ctx, args)
	case "title":
		return b.updateTask(ctx, args, "title")
	case "desc":
		return b.updateTask(ctx, args, "description")
	case "delete":
		return b.deleteTask(ctx, args)
	default:
		return "Неизвестная команда. Используйте /help для списка команд."
	}
}

// listLimit - сколько задач помещается в одно сообщение.
const listLimit = 100

const helpText = `🤖 Помощь по командам

/add заголовок | описание - Добавить задачу
/list [текст] - Показать задачи, можно с поиском
/task номер - Показать задачу
/title номер текст - Изменить заголовок
/desc номер текст - Изменить описание
/delete номер - Удалить задачу
/help - Показать эту справку

Примеры:
/add Купить молоко | 2 литра, обезжиренное
/list молоко
/title 1 Купить кефир`

// parseTask разбирает "заголовок | описание". Без описания оно совпадает с заголовком.
func parseTask(text string) models.CreateTaskRequest {
	title, description, found := strings.Cut(text, "|")
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if !found || description == "" {
		description = title
	}
	return models.CreateTaskRequest{Title: title, Description: description}
}

func (b *Bot) addTask(ctx context.Context, text string) string {
	task, err := b.taskManager.CreateTask(ctx, parseTask(text))
	if err != nil {
		return errorText(err, 0)
	}
	return fmt.Sprintf("✅ Задача добавлена!\n\nID: #%d\n%s", task.ID, formatTask(task))
}

func (b *Bot) listTasks(ctx context.Context, query string) string {
	tasks, err := b.taskManager.ListTasks(ctx, models.TaskFilter{Limit: listLimit, Query: query})
	if err != nil {
		return errorText(err, 0)
	}
	if len(tasks) == 0 {
		if query != "" {
			return "🔍 Ничего не найдено"
		}
		return "📭 Список задач пуст"
	}

	var response strings.Builder
	response.WriteString("📋 Задачи:\n\n")
	for _, task := range tasks {
		fmt.Fprintf(&response, "#%d: %s\n", task.ID, task.Title)
	}
	return response.String()
}

func (b *Bot) showTask(ctx context.Context, args string) string {
	id, err := strconv.Atoi(args)
	if err != nil {
		return "Номер задачи должен быть числом: /task 1"
	}
	task, err := b.taskManager.GetTask(ctx, id)
	if err != nil {
		return errorText(err, id)
	}
	return fmt.Sprintf("📌 Задача #%d\n%s", task.ID, formatTask(task))
}

func (b *Bot) updateTask(ctx context.Context, args, field string) string {
	idArg, text, _ := strings.Cut(args, " ")
	id, err := strconv.Atoi(idArg)
	if err != nil {
		return "Укажите номер задачи и новый текст: /title 1 Новый заголовок"
	}
	text = strings.TrimSpace(text)

	var req models.UpdateTaskRequest
	if field == "title" {
		req.Title = &text
	} else {
		req.Description = &text
	}

	task, err := b.taskManager.UpdateTask(ctx, id, req)
	if err != nil {
		return errorText(err, id)
	}
	return fmt.Sprintf("✏️ Задача #%d обновлена\n%s", task.ID, formatTask(task))
}

func (b *Bot) deleteTask(ctx context.Context, args string) string {
	id, err := strconv.Atoi(args)
	if err != nil {
		return "Номер задачи должен быть числом: /delete 1"
	}
	if err := b.taskManager.DeleteTask(ctx, id); err != nil {
		return errorText(err, id)
	}
	return fmt.Sprintf("🗑️ Задача #%d удалена!", id)
}

func formatTask(task *models.Task) string {
	return fmt.Sprintf("Заголовок: %s\nОписание: %s", task.Title, task.Description)
}

func errorText(err error, id int) string {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fmt.Sprintf("❌ Задача #%d не найдена", id)
	case errors.As(err, &verr):
		return "❌ Некорректные данные: " + verr.Error()
	default:
		return "❌ Внутренняя ошибка, попробуйте позже"
	}
}

// Текст отправляется без ParseMode: пользовательский ввод может сломать разметку.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logger.Error(ctx, err, "Ошибка отправки сообщения", "chatID", chatID)
	}
}
