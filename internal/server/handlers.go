package server

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
	"github.com/gofiber/fiber/v2"
)

type messageSummary struct {
	UID     uint32    `json:"uid"`
	Subject string    `json:"subject"`
	From    []string  `json:"from"`
	Date    time.Time `json:"date"`
	Size    int64     `json:"size"`
	Flags   []string  `json:"flags"`
}

type messageDetail struct {
	messageSummary
	To    string          `json:"to,omitempty"`
	Cc    string          `json:"cc,omitempty"`
	Parts *messages.Parts `json:"parts"`
}

type uidsRequest struct {
	UIDs        []uint32 `json:"uids"`
	Destination string   `json:"destination"`
}

// NotFound answers routes that do not exist.
func NotFound(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound, "no route for "+c.Method()+" "+c.Path())
}

// ListFolders returns every folder of the account.
func ListFolders(c *fiber.Ctx) error {
	folders, err := session(c).ListFolders(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"folders": folders})
}

// ListMessages searches a folder (q defaults to ALL) and returns header summaries.
func ListMessages(c *fiber.Ctx) error {
	mailbox, err := selectFolder(c)
	if err != nil {
		return err
	}

	criteria := strings.TrimSpace(c.Query("q"))
	if criteria == "" {
		criteria = "ALL"
	}
	uids, err := mailbox.Search(c.UserContext(), criteria)
	if err != nil {
		return err
	}

	it, err := mailbox.IterateUIDs(c.UserContext(), uids)
	if err != nil {
		return err
	}
	summaries := make([]messageSummary, 0, len(uids))
	for it.Next(c.UserContext()) {
		summaries = append(summaries, summarize(it.Message()))
	}
	if err := it.Err(); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"criteria": criteria, "messages": summaries})
}

// ShowMessage returns one message with its decoded parts.
func ShowMessage(c *fiber.Ctx) error {
	uid, err := strconv.ParseUint(c.Params("uid"), 10, 32)
	if err != nil || uid == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid uid "+c.Params("uid"))
	}

	mailbox, err := selectFolder(c)
	if err != nil {
		return err
	}
	msg, err := mailbox.Fetch(c.UserContext(), uint32(uid))
	if err != nil {
		return err
	}
	parts, err := msg.Parts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(messageDetail{
		messageSummary: summarize(msg),
		To:             msg.Text("To"),
		Cc:             msg.Text("Cc"),
		Parts:          parts,
	})
}

// MoveMessages moves {"uids": [...], "destination": "..."} out of the folder.
func MoveMessages(c *fiber.Ctx) error {
	req, err := parseUIDs(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Destination) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "destination is required")
	}

	mailbox, err := selectFolder(c)
	if err != nil {
		return err
	}
	if err := mailbox.Move(c.UserContext(), req.UIDs, strings.TrimSpace(req.Destination)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"moved": len(req.UIDs), "destination": strings.TrimSpace(req.Destination)})
}

// DeleteMessages permanently removes {"uids": [...]} from the folder.
func DeleteMessages(c *fiber.Ctx) error {
	req, err := parseUIDs(c)
	if err != nil {
		return err
	}

	mailbox, err := selectFolder(c)
	if err != nil {
		return err
	}
	if err := mailbox.Delete(c.UserContext(), req.UIDs); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": len(req.UIDs)})
}

func session(c *fiber.Ctx) imap.Mailbox {
	return c.Locals(mailboxLocal).(imap.Mailbox)
}

func selectFolder(c *fiber.Ctx) (imap.Mailbox, error) {
	folder, err := url.PathUnescape(c.Params("folder"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid folder name")
	}
	mailbox := session(c)
	if _, err := mailbox.Select(c.UserContext(), folder); err != nil {
		return nil, err
	}
	return mailbox, nil
}

func parseUIDs(c *fiber.Ctx) (*uidsRequest, error) {
	req := &uidsRequest{}
	if err := c.BodyParser(req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.UIDs) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "uids are required")
	}
	return req, nil
}

func summarize(msg *messages.Message) messageSummary {
	summary := messageSummary{
		UID:     msg.UID,
		Subject: msg.Subject(),
		From:    []string{},
		Date:    msg.Date(),
		Size:    msg.Size,
		Flags:   make([]string, 0, len(msg.Flags)),
	}
	for _, addr := range msg.From() {
		summary.From = append(summary.From, addr.Address)
	}
	for _, flag := range msg.Flags {
		summary.Flags = append(summary.Flags, string(flag))
	}
	return summary
}
