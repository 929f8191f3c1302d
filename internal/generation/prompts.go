package generation

import (
	"fmt"

	"botforge/internal/requirements"
)

const backendPromptTemplate = `You are an expert Python backend engineer with 15+ years of experience designing and building production-grade web services.
Your task is to generate a complete, high-quality backend application in Python **without any frontend code**.
Use modern best practices, proper structure, and focus on maintainability, security, and performance.

## Requirements
%s

## Instructions:
- Use FastAPI for web APIs.
- Use SQLAlchemy (with async support) for database models.
- Include authentication if the use case suggests it (JWT preferred).
- Implement input validation using Pydantic.
- Include exception handling and proper HTTP responses.
- Use clear naming conventions and logical modular structure.
- Ensure endpoints follow REST principles.
- Include database session handling (use dependency injection in FastAPI).
- Return JSON responses.
- Do not include testing, UI code, markdown, or explanations.
- Output should be plain Python code, as if writing a complete backend project file.

### Begin backend code:
`

const uiPromptTemplate = `You are an expert frontend engineer specialized in React and TailwindCSS.
Your task is to interpret the user's intent and produce a fully functional, modern React frontend UI **only**.
DO NOT implement any backend logic or server-side functionality.
Focus exclusively on crafting a complete, beautiful, and responsive UI based on the requirements.

User Requirements:
%s

## Instructions:
- Produce a single App component in JSX using functional components and hooks.
- Style exclusively with TailwindCSS utility classes.
- Call the backend through the apiCall helper imported from './config'.
- Handle loading and error states for every remote call.
- Do not include backend code, markdown fences, or explanations.

### Begin React component:
`

// BuildPrompt renders the role-specific generation prompt. An empty
// specification still produces a valid prompt for a generic artifact.
func BuildPrompt(role Role, spec requirements.Payload) string {
	rendered := spec.Render()
	if role == RoleUI {
		return fmt.Sprintf(uiPromptTemplate, rendered)
	}
	return fmt.Sprintf(backendPromptTemplate, rendered)
}
