package usecase

import "strings"

// FallbackAnswer is the reply the answer prompt asks for when the context does
// not contain the answer.
const FallbackAnswer = "عفواً، لا أمتلك هذه المعلومة حالياً."

const (
	answerTemperature   = 0
	rephraseTemperature = 0.1
	contextSeparator    = "\n\n"
)

const answerPromptTemplate = `
أنت مساعد متخصص في الإجابة على أسئلة الزبائن الخاصة بمنيو وفروع مقهى سيلنترو.
أجب على السؤال التالي بناءً على السياق المقدم لك فقط. كن ودوداً ومباشراً في إجابتك.

**عند عرض أي قائمة، استخدم تنسيق Markdown على شكل نقاط (bullet points)، بحيث يكون كل عنصر في سطر منفصل. مثال:**
- العنصر الأول (First Item)
- العنصر الثاني (Second Item)

إذا كانت الإجابة غير موجودة في السياق، أجب بـ "` + FallbackAnswer + `"

**السياق (Context):**
{context}

**السؤال (Question):**
{question}

**الإجابة:**
`

const contextualizeInstruction = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone question " +
	"which can be understood without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

// BuildAnswerPrompt fills the answer template in a single pass, so placeholder
// text inside the context is never substituted again.
func BuildAnswerPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(answerPromptTemplate)
}
