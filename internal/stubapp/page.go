package stubapp

import "html/template"

// pageData feeds the flow template. Delays are in milliseconds for the script.
type pageData struct {
	ValidatingMS   int64
	ScanMS         int64
	MinCodeLength  int
	SkipValidating bool
}

var pageTemplate = template.Must(template.New("flow").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>The Sovereign Ecosystem</title>
<style>
	body { margin: 0; font-family: sans-serif; background: #0d0d0f; color: #e8e2d0; }
	main { min-height: 100vh; display: flex; align-items: center; justify-content: center; padding: 24px; }
	.screen { max-width: 640px; width: 100%; text-align: center; animation: fade-in 0.6s ease-out; }
	.screen[hidden] { display: none; }
	.roles { display: grid; grid-template-columns: 1fr 1fr; gap: 24px; }
	.roles button { padding: 32px; background: #17171b; color: inherit; border: 1px solid #333; cursor: pointer; }
	input { width: 100%; box-sizing: border-box; font-size: 24px; text-align: center; letter-spacing: 0.2em; padding: 12px; }
	button[type=submit] { width: 100%; margin-top: 24px; padding: 18px; font-size: 18px; background: #d4af37; border: 0; }
	button[disabled] { opacity: 0.5; cursor: not-allowed; }
	.error { color: #e05252; }
	@keyframes fade-in { from { opacity: 0; transform: scale(0.95); } to { opacity: 1; transform: scale(1); } }
</style>
</head>
<body>
<main id="app" data-validating-ms="{{.ValidatingMS}}" data-scan-ms="{{.ScanMS}}"
	data-min-code-length="{{.MinCodeLength}}" data-skip-validating="{{.SkipValidating}}">
	<section id="role-screen" class="screen">
		<h1>The Sovereign Ecosystem</h1>
		<div class="roles" role="group" aria-label="User role selection">
			<button type="button" id="agent-role" aria-label="Select agent dashboard experience">
				<h2>Portfolio Shield</h2>
				<p>Manage listings and client relationships</p>
			</button>
			<button type="button" id="client-role" aria-label="Select client browsing experience">
				<h2>Client Experience</h2>
				<p>Browse curated properties</p>
			</button>
		</div>
	</section>

	<section id="agent-screen" class="screen" hidden>
		<h2>Agent Dashboard</h2>
	</section>

	<section id="auth-screen" class="screen" hidden>
		<h2>Velvet Rope Entry</h2>
		<p>Enter your exclusive invite code</p>
		<form id="auth-form" novalidate>
			<input id="invite-code" type="text" placeholder="INVITE-CODE" aria-label="Invite Code" autocomplete="off">
			<p id="auth-error" class="error" role="alert" hidden></p>
			<button type="submit" id="auth-submit" disabled>Enter</button>
		</form>
		<p>No invite code? Contact your agent for exclusive access.</p>
	</section>

	<section id="scan-screen" class="screen" hidden>
		<h3 id="scan-title">Authenticating...</h3>
		<p id="scan-detail">Verifying your identity</p>
	</section>
</main>
<script>
(function() {
	const cfg = document.getElementById('app').dataset;
	const validatingMS = Number(cfg.validatingMs);
	const scanMS = Number(cfg.scanMs);
	const minLength = Number(cfg.minCodeLength);
	const skipValidating = cfg.skipValidating === 'true';

	const $ = (id) => document.getElementById(id);
	const show = (id) => {
		for (const s of document.querySelectorAll('.screen')) s.hidden = s.id !== id;
	};

	$('agent-role').addEventListener('click', () => show('agent-screen'));
	$('client-role').addEventListener('click', () => {
		show('auth-screen');
		$('invite-code').focus();
	});

	const input = $('invite-code');
	const submit = $('auth-submit');
	const error = $('auth-error');
	let validating = false;

	const refresh = () => {
		submit.disabled = validating || input.value.length < minLength;
	};
	input.addEventListener('input', () => {
		const pos = input.selectionStart;
		input.value = input.value.toUpperCase();
		input.setSelectionRange(pos, pos);
		refresh();
	});

	const startScan = () => {
		show('scan-screen');
		setTimeout(() => {
			$('scan-title').textContent = 'Access Granted';
			$('scan-detail').textContent = 'Welcome to The Sovereign Ecosystem';
		}, scanMS);
	};

	$('auth-form').addEventListener('submit', (e) => {
		e.preventDefault();
		error.hidden = true;
		if (input.value.length < minLength) {
			error.textContent = 'Invalid invite code';
			error.hidden = false;
			return;
		}
		if (skipValidating) {
			startScan();
			return;
		}
		validating = true;
		input.disabled = true;
		submit.textContent = 'Validating...';
		refresh();
		setTimeout(startScan, validatingMS);
	});
})();
</script>
</body>
</html>
`))
