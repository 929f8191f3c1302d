package assemble

import "fmt"

// indexHTML is the static entry page that loads App.jsx via CDN React and
// Babel so the assembled frontend runs from a plain static file server.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Generated Application</title>
    <script src="https://unpkg.com/react@18/umd/react.development.js"></script>
    <script src="https://unpkg.com/react-dom@18/umd/react-dom.development.js"></script>
    <script src="https://unpkg.com/@babel/standalone/babel.min.js"></script>
    <script src="https://cdn.tailwindcss.com"></script>
    <script src="https://unpkg.com/axios/dist/axios.min.js"></script>
</head>
<body class="bg-gray-100 min-h-screen">
    <div id="root" class="container mx-auto p-4"></div>

    <script type="text/babel" src="App.jsx"></script>
    <script type="text/babel">
        ReactDOM.render(
            <App />,
            document.getElementById('root')
        );
    </script>
</body>
</html>
`

// packageJSON is the frontend toolchain manifest.
const packageJSON = `{
  "name": "bot-frontend",
  "version": "0.1.0",
  "private": true,
  "dependencies": {
    "react": "^18.2.0",
    "react-dom": "^18.2.0",
    "tailwindcss": "^3.3.0",
    "axios": "^1.6.0"
  },
  "scripts": {
    "start": "react-scripts start",
    "build": "react-scripts build"
  }
}
`

// frontendConfigJS wires the generated UI to the backend's fixed endpoint.
const frontendConfigJS = `// Configuration for API endpoints
export const API_BASE_URL = 'http://localhost:8000';

// Utility functions for API calls
export const apiCall = async (endpoint, method = 'GET', data = null) => {
  const options = {
    method,
    headers: {
      'Content-Type': 'application/json',
    },
  };

  if (data) {
    options.body = JSON.stringify(data);
  }

  const response = await fetch(` + "`${API_BASE_URL}${endpoint}`" + `, options);

  if (!response.ok) {
    throw new Error(` + "`API call failed: ${response.statusText}`" + `);
  }

  return await response.json();
};
`

func renderReadme(rootName string, hasFrontend bool) string {
	frontendSection := ""
	if hasFrontend {
		frontendSection = `
### Frontend
1. Navigate to the frontend directory:
   ` + "```" + `
   cd frontend
   ` + "```" + `
2. Start a simple HTTP server to serve the frontend:
   ` + "```" + `
   python3 -m http.server 3000
   ` + "```" + `

## Accessing the Application
- Backend API: http://localhost:8000
- Frontend UI: http://localhost:3000
`
	} else {
		frontendSection = `
## Accessing the Application
- Backend API: http://localhost:8000
`
	}

	return fmt.Sprintf(`# %s

## Structure
- `+"`backend/`"+`: Python backend code
%s
## Setup Instructions

### Backend
1. Navigate to the backend directory:
   `+"```"+`
   cd backend
   `+"```"+`
2. Install the required packages:
   `+"```"+`
   pip install -r requirements.txt
   `+"```"+`
3. Run the backend server:
   `+"```"+`
   uvicorn app:app --reload --host 0.0.0.0 --port 8000
   `+"```"+`
%s
## API Documentation
The backend API is accessible at http://localhost:8000/docs when the server is running.
`, rootName, frontendStructureLine(hasFrontend), frontendSection)
}

func frontendStructureLine(hasFrontend bool) string {
	if hasFrontend {
		return "- `frontend/`: React frontend code\n"
	}
	return ""
}
