// Package flow implements the top-level conversation state machine that
// routes inbound events to quiz handling, retrieval QA, or scripted
// replies.
package flow

import (
	"fmt"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// Menu trigger phrases and feedback tokens. Matching is exact after
// whitespace trimming; menu phrases never mutate the profile.
const (
	TriggerWhatWeDo  = "那我們都在幹什麼"
	TriggerWantJoin  = "我想加入！"
	TriggerReady     = "準備好了！"
	TriggerStartChat = "@呼叫社團LLM"

	FeedbackPositive = "O"
	FeedbackNegative = "X"
)

// Fixed reply texts.
const (
	correctText       = "正確答案～"
	allCorrectText    = "正確答案～這五題都答對了！！"
	wrongText         = "答錯了，再接再厲～"
	tryAgainText      = "再試一次！"
	nextQuestionText  = "那就再來一題！"
	invalidChoiceText = "請選擇正確的選項哦！"
	eventNoticeText   = "【Google 學生開發者社群】 9/30 12:10 ~ 13:00 招生說明會抽獎 ✨，現在就火速報名吧！"
	chatGreetingText  = "Hi！我是 GDG on Campus NTPU 的專屬AI助手，有什麼想了解的嗎？\n\n(請將您的問題詳述說明(30字內)，以利於我們進一步收集問題並回覆您!)"
	feedbackThanks    = "謝謝您的肯定！"
	escalatedText     = "好的，很感謝您的回饋，我們之後會派工作人員回答您的問題，之後還請您注意，謝謝！"
	unavailableText   = "抱歉，系統暫時無法處理您的訊息，請稍後再試。"
)

// welcomeMessage is sent on first contact.
func welcomeMessage() models.Message {
	return models.TemplateMessage(
		"歡迎加入互動帳號！",
		"我們是由 Google 官方支持成立、立足北大的開發者社群",
		models.Button{Label: "想知道我們的日常", Text: TriggerWhatWeDo},
	)
}

func whatWeDoMessage() models.Message {
	return models.TemplateMessage(
		"GDG on Campus NTPU的我們",
		"會定期舉辦各式技術教學課程、交流活動、豐富的講座與工作坊，甚至是企業參訪！\n不僅提升你的開發能力，也能增廣見聞、結交志同道合的夥伴！",
		models.Button{Label: "原來如此！", Text: TriggerWantJoin},
	)
}

func joinPromptMessage() models.Message {
	return models.TemplateMessage(
		"參加問答活動有驚喜！",
		"現在參加本帳號的互動問答，且皆回答正確，就能獲得專屬碼！\n我們將在 9/30 12:10 ~ 13:00 的「2025 招生說明會」上，即可憑此碼參與抽獎哦🎁～",
		models.Button{Label: "馬上開始！", Text: TriggerReady},
	)
}

// questionMessage renders one quiz question as a template with one button
// per answer option.
func questionMessage(q models.QuizQuestion) models.Message {
	buttons := make([]models.Button, 0, len(q.Options))
	for _, opt := range q.Options {
		buttons = append(buttons, models.Button{Label: opt, Text: opt})
	}
	m := models.TemplateMessage(fmt.Sprintf("第 %d 題", q.ID), q.Prompt, buttons...)
	m.ImageURL = q.ImageURL
	return m
}

// awardCodeMessage presents the issued reward code.
func awardCodeMessage(code string) models.Message {
	return models.TemplateMessage(
		"🎉 恭喜完成所有題目！ 🎉",
		fmt.Sprintf("您的專屬獎勵代碼\n%s\n9/30 12:10~13:00 活動現場將憑此參加抽獎", code),
	)
}

// chatInviteMessage invites a finished user to ask the club assistant a
// question.
func chatInviteMessage(title string) models.Message {
	return models.TemplateMessage(
		title,
		"如果您想要更認識我們的話，就呼叫社團LLM來幫你解答吧",
		models.Button{Label: "我想提問", Text: TriggerStartChat},
	)
}

// feedbackMessage asks whether the generated answer helped.
func feedbackMessage() models.Message {
	return models.TemplateMessage(
		"你認為我回答得如何？",
		"",
		models.Button{Label: "我了解了", Text: FeedbackPositive},
		models.Button{Label: "我還是很困惑", Text: FeedbackNegative},
	)
}
