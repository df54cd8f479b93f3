package v1

import "net/http"

func Web() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html := `
<!DOCTYPE html>
<html>
<head>
    <title>File Upload</title>
    <style>
        form {
            margin: 20px;
        }
        .form-group {
            margin-bottom: 10px;
        }
        progress {
            width: 320px;
        }
    </style>
</head>
<body>
    <form id="uploadForm" onsubmit="uploadFiles(event)">
        <div class="form-group">
            <label for="fileInput">Select files:</label>
            <input type="file" id="fileInput" multiple required>
        </div>
        <div class="form-group">
            <input type="submit" value="Upload">
        </div>
        <div class="form-group">
            <progress id="progress" value="0" max="100"></progress>
            <span id="status"></span>
        </div>
    </form>

    <script>
    let socketId = '';
    const sizes = {};

    const scheme = location.protocol === 'https:' ? 'wss' : 'ws';
    const socket = new WebSocket(scheme + '://' + location.host + '/ws');
    socket.onmessage = (msg) => {
        const frame = JSON.parse(msg.data);
        if (frame.event === 'connected') {
            socketId = frame.data.id;
            return;
        }
        if (frame.event === 'file-upload') {
            const { filename, processedAlready } = frame.data;
            const total = sizes[filename] || processedAlready;
            const pct = Math.min(100, Math.round(processedAlready / total * 100));
            document.getElementById('progress').value = pct;
            document.getElementById('status').innerText = filename + ' ' + pct + '%';
        }
    };

    function uploadFiles(event) {
        event.preventDefault();

        const fileInput = document.getElementById('fileInput');
        if (!fileInput.files.length) {
            alert('Please select a file first');
            return;
        }

        const form = new FormData();
        for (const file of fileInput.files) {
            sizes[file.name] = file.size;
            form.append('files', file, file.name);
        }

        fetch('/api/v1/upload?socketId=' + encodeURIComponent(socketId), {
            method: 'POST',
            body: form
        })
        .then(response => {
            if (response.ok) {
                document.getElementById('progress').value = 100;
                document.getElementById('status').innerText = 'Files uploaded with success!';
                document.getElementById('uploadForm').reset();
            } else {
                alert('Upload failed');
            }
        })
        .catch(error => {
            console.error('Error:', error);
            alert('Upload failed');
        });
    }
    </script>
</body>
</html>`

		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}
}
