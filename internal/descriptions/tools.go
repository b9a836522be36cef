package descriptions

// Tool descriptions shown to MCP clients

const (
	FormOpenDescription = `Open a PDF form and start asking its questions one at a time.

**When to use:** Start filling a form. Give a file name inside the form directory, or nothing to use the default form (ar-11.pdf).

**Returns:** A session id, the number of text fields and the first question. A document without fillable text fields opens as an already completed session.

**Examples:**
• Default form: "Open the change of address form"
• Named form: "Open w-9.pdf and fill it in"

**Common workflow:** form_open → form_submit for each question → form_write → form_close`

	FormFieldsDescription = `List the text fields of an open form in the order they will be asked.

**When to use:** Preview every question before answering, or look up a field's identifier.

**Returns:** One line per field with its identifier, its prompt and the pages it appears on.`

	FormSubmitDescription = `Answer the current question of an open form.

**When to use:** After form_open or a previous form_submit, pass the user's answer for the question that was asked.

**Rules:**
• Empty or whitespace-only answers are rejected and the same question is asked again
• Answers are stored exactly as given
• Once every question is answered further answers are ignored

**Returns:** The outcome (accepted, rejected or ignored) and the next question, or the collected answers when the form is complete.`

	FormStatusDescription = `Show the progress of an open form.

**Returns:** Answered and total question counts, the current question and the answers collected so far.`

	FormWriteDescription = `Write the collected answers into the PDF and save it as a filled form.

**When to use:** After every question has been answered.

**Returns:** The path of the saved document and the document itself as an embedded application/pdf resource.`

	FormCloseDescription = `Close an open form session and discard its answers.`
)
