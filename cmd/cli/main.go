// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"

	"docverify/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("docverify cli 0.1.0")
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runService("./cmd/api")
		} else {
			fmt.Fprintf(os.Stderr, "Usage: docverify server start\n")
			os.Exit(1)
		}
	case "worker":
		if len(args) > 0 && args[0] == "start" {
			runService("./cmd/worker")
		} else {
			fmt.Fprintf(os.Stderr, "Usage: docverify worker start\n")
			os.Exit(1)
		}
	case "hash":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: docverify hash <file>\n")
			os.Exit(1)
		}
		runHash(args[0])
	case "verify":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: docverify verify <document-hash>\n")
			os.Exit(1)
		}
		runVerify(args[0])
	case "cert":
		runCert(args)
	case "submit":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: docverify submit <file> <org-id>\n")
			os.Exit(1)
		}
		runSubmit(args[0], args[1])
	case "login":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: docverify login <org-id> <api-key>\n")
			os.Exit(1)
		}
		runLogin(args[0], args[1])
	case "evidence":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: docverify evidence <cert-id> [output.zip]\n")
			os.Exit(1)
		}
		out := args[0] + "-evidence.zip"
		if len(args) > 1 {
			out = args[1]
		}
		runEvidence(args[0], out)
	case "sync":
		runSync()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: docverify <command> [args]")
	fmt.Println("  version               - 显示版本")
	fmt.Println("  config                - 显示配置概要")
	fmt.Println("  server start          - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  worker start          - 启动事件同步 Worker（go run ./cmd/worker）")
	fmt.Println("  hash <file>           - 计算文档的规范化哈希")
	fmt.Println("  verify <hash>         - 公开查验某份文档的双账本结论")
	fmt.Println("  cert <id> [history]   - 按证书号查验，history 输出链上版本历史")
	fmt.Println("  submit <file> <org>   - 以机构身份提交文档校验并锚定（需 DOCVERIFY_TOKEN）")
	fmt.Println("  login <org> <key>     - 用机构 API key 换取访问 token")
	fmt.Println("  evidence <id> [file]  - 下载证书的签名查验证据包（ZIP）")
	fmt.Println("  sync                  - 输出账本事件同步进度")
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("ledger_a.type=%s\n", cfg.LedgerA.Type)
	fmt.Printf("ledger_b.type=%s\n", cfg.LedgerB.Type)
	fmt.Printf("blobstore.type=%s\n", cfg.BlobStore.Type)
	fmt.Printf("records.type=%s\n", cfg.Records.Type)
}

func runService(pkg string) {
	c := exec.Command("go", "run", pkg)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "start %s: %v\n", pkg, err)
		os.Exit(1)
	}
}

func runHash(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取文件失败: %v\n", err)
		os.Exit(1)
	}
	sum := sha256.Sum256(data)
	fmt.Println(hex.EncodeToString(sum[:]))
}

func runVerify(hash string) {
	out, err := verifyHash(hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runCert(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: docverify cert <id> [history]\n")
		os.Exit(1)
	}
	var out map[string]interface{}
	var err error
	if len(args) > 1 && args[1] == "history" {
		out, err = certificateHistory(args[0])
	} else {
		out, err = verifyCertificate(args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runSubmit(path, orgID string) {
	out, err := submitDocument(path, orgID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runLogin(orgID, apiKey string) {
	token, err := login(orgID, apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintln(os.Stderr, "export DOCVERIFY_TOKEN=<token> 后即可使用 submit")
}

func runEvidence(certID, outPath string) {
	if err := downloadEvidence(certID, outPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("证据包已写入 %s\n", outPath)
}

func runSync() {
	out, err := syncStatus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}
